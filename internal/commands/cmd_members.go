package commands

import (
	"context"
	"encoding/json"

	"github.com/dustin/go-humanize"
	"github.com/hay-kot/classchat/internal/printer"
	"github.com/urfave/cli/v3"
)

type MembersCmd struct {
	flags  *Flags
	format string
}

// NewMembersCmd creates a new members command.
func NewMembersCmd(flags *Flags) *MembersCmd {
	return &MembersCmd{flags: flags}
}

// Register adds the members command to the application.
func (cmd *MembersCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "members",
		Usage:     "List the members of your class",
		UsageText: "classchat members [--format text|json]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *MembersCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	sess, err := cmd.flags.Session(ctx)
	if err != nil {
		return err
	}

	users, err := cmd.flags.Service.Members(ctx, sess)
	if err != nil {
		return err
	}

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		for _, u := range users {
			if err := enc.Encode(u); err != nil {
				return err
			}
		}
		return nil
	}

	for _, u := range users {
		label := u.Author().Glyph() + " " + u.Name
		if u.Admin {
			label += " " + p.Bold("(admin)")
		}
		p.Item(label, u.ID+", joined "+humanize.Time(u.CreatedAt))
	}
	return nil
}
