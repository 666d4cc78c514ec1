package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/printer"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

type SendCmd struct {
	flags *Flags

	channel string
	file    string
	media   string
}

// NewSendCmd creates a new send command.
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

// Register adds the send command to the application.
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Send a message to a channel",
		UsageText: "classchat send [--channel <id>] [--media <file>] [message]",
		Description: `Sends a message as the signed in user.

The text can be provided as:
- A command-line argument
- From a file with -f/--file
- From stdin if no argument is provided

An image or video can be attached with --media; the text may then be empty.

Examples:
  classchat send "Is the lab due Friday?"
  classchat send --channel homework -f answer.md
  classchat send --channel resources --media diagram.png "Figure 3"`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "channel",
				Aliases:     []string{"ch"},
				Usage:       "channel id (default: general)",
				Destination: &cmd.channel,
			},
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "read message text from file",
				Destination: &cmd.file,
			},
			&cli.StringFlag{
				Name:        "media",
				Aliases:     []string{"m"},
				Usage:       "attach an image or video file",
				Destination: &cmd.media,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	content, err := cmd.content(c)
	if err != nil {
		return err
	}

	sess, err := cmd.flags.Session(ctx)
	if err != nil {
		return err
	}

	key, err := cmd.flags.channelKey(ctx, sess, cmd.channel)
	if err != nil {
		return err
	}

	draft := chat.Draft{Content: content}
	if cmd.media != "" {
		media, err := cmd.upload(ctx, key)
		if err != nil {
			return err
		}
		draft.Media = &media
	}

	msg, err := cmd.flags.Service.Send(ctx, sess, key.ChannelID, draft)
	if err != nil {
		return err
	}

	p.Successf("Sent to #%s", msg.ChannelID)
	return nil
}

func (cmd *SendCmd) content(c *cli.Command) (string, error) {
	switch {
	case c.NArg() >= 1:
		return strings.Join(c.Args().Slice(), " "), nil
	case cmd.file != "":
		data, err := os.ReadFile(cmd.file)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(data), nil
	case cmd.media != "" && term.IsTerminal(int(os.Stdin.Fd())):
		// media only
		return "", nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
}

func (cmd *SendCmd) upload(ctx context.Context, key chat.Key) (chat.Media, error) {
	f, err := os.Open(cmd.media)
	if err != nil {
		return chat.Media{}, fmt.Errorf("open media: %w", err)
	}
	defer func() { _ = f.Close() }()

	return cmd.flags.Service.UploadMedia(ctx, key, filepath.Base(cmd.media), f)
}
