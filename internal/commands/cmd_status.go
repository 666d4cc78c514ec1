package commands

import (
	"context"
	"time"

	"github.com/hay-kot/classchat/internal/printer"
	"github.com/urfave/cli/v3"
)

type StatusCmd struct {
	flags *Flags
}

// NewStatusCmd creates a new status command.
func NewStatusCmd(flags *Flags) *StatusCmd {
	return &StatusCmd{flags: flags}
}

// Register adds the status command to the application.
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show whether you can currently send messages",
		UsageText: "classchat status",
		Description: `Reports your moderation state: a class-wide block or a personal mute, with
the reason and when it ends. Exits non-zero when sending is not allowed.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	sess, err := cmd.flags.Session(ctx)
	if err != nil {
		return err
	}

	verdict, err := cmd.flags.Service.Moderation(ctx, sess)
	if err != nil {
		return err
	}

	if verdict.Allowed {
		p.Printf("%s %s", sess.Author().Glyph(), printer.StatusOK())
		return nil
	}

	p.Printf("%s %s", sess.Author().Glyph(), printer.StatusFailed(verdict.Banner(time.Now())))
	return cli.Exit("", 1)
}
