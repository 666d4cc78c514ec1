package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/printer"
	"github.com/urfave/cli/v3"
)

type AccountCmd struct {
	flags *Flags
}

// NewAccountCmd creates the whoami, avatar, and logout commands.
func NewAccountCmd(flags *Flags) *AccountCmd {
	return &AccountCmd{flags: flags}
}

// Register adds the account commands to the application.
func (cmd *AccountCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "whoami",
			Usage:     "Show the signed in user",
			UsageText: "classchat whoami",
			Action:    cmd.runWhoami,
		},
		&cli.Command{
			Name:      "avatar",
			Usage:     "Change your avatar",
			UsageText: "classchat avatar <emoji>",
			Description: `Sets your avatar to a single emoji. Pass an empty string to fall back to
your initials.

Examples:
  classchat avatar 🦊
  classchat avatar ""`,
			Action: cmd.runAvatar,
		},
		&cli.Command{
			Name:      "logout",
			Usage:     "Forget the saved login",
			UsageText: "classchat logout",
			Action:    cmd.runLogout,
		},
	)

	return app
}

func (cmd *AccountCmd) runWhoami(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	sess, err := cmd.flags.Session(ctx)
	if err != nil {
		return err
	}

	role := "member"
	if sess.User.Admin {
		role = "admin"
	}

	p.Printf("%s %s", sess.Author().Glyph(), p.Bold(sess.User.Name))
	p.Infof("role: %s", role)
	p.Infof("user id: %s", sess.User.ID)
	p.Infof("class id: %s", sess.ClassID)
	p.Infof("joined %s", humanize.Time(sess.User.CreatedAt))
	return nil
}

func (cmd *AccountCmd) runAvatar(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if c.NArg() != 1 {
		return errors.New("usage: classchat avatar <emoji>")
	}

	sess, err := cmd.flags.Session(ctx)
	if err != nil {
		return err
	}

	sess, err = cmd.flags.Service.SetAvatar(ctx, sess, c.Args().First())
	if err != nil {
		return err
	}

	if err := cmd.flags.Login.Save(ctx, sess); err != nil {
		return fmt.Errorf("save login: %w", err)
	}

	p.Successf("Avatar set to %s", sess.Author().Glyph())
	return nil
}

func (cmd *AccountCmd) runLogout(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	_, err := cmd.flags.Login.Load(ctx)
	if errors.Is(err, chat.ErrNotAuthenticated) {
		p.Infof("Not signed in")
		return nil
	}

	if err := cmd.flags.Login.Clear(ctx); err != nil {
		return fmt.Errorf("clear login: %w", err)
	}

	p.Successf("Signed out")
	return nil
}
