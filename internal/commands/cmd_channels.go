package commands

import (
	"context"
	"encoding/json"

	"github.com/hay-kot/classchat/internal/printer"
	"github.com/urfave/cli/v3"
)

type ChannelsCmd struct {
	flags  *Flags
	format string
}

// NewChannelsCmd creates a new channels command.
func NewChannelsCmd(flags *Flags) *ChannelsCmd {
	return &ChannelsCmd{flags: flags}
}

// Register adds the channels command to the application.
func (cmd *ChannelsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "channels",
		Usage:     "List the channels of your class",
		UsageText: "classchat channels [--format text|json]",
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

func (cmd *ChannelsCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	sess, err := cmd.flags.Session(ctx)
	if err != nil {
		return err
	}

	channels, err := cmd.flags.Service.Channels(ctx, sess.ClassID)
	if err != nil {
		return err
	}

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		for _, ch := range channels {
			if err := enc.Encode(ch); err != nil {
				return err
			}
		}
		return nil
	}

	group := "\x00"
	for _, ch := range channels {
		if ch.Group != group {
			if group != "\x00" {
				p.Printf("")
			}
			group = ch.Group
			title := group
			if title == "" {
				title = "other"
			}
			p.Section(title)
		}

		detail := "#" + ch.ID
		if ch.Private {
			detail += ", admins post"
		}
		p.Item(ch.Name, detail)
	}
	return nil
}
