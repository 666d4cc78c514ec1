package commands

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"

	"github.com/hay-kot/classchat/internal/classchat"
	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/printer"
	"github.com/urfave/cli/v3"
)

type ReadCmd struct {
	flags *Flags

	channel string
	last    int
	follow  bool
	format  string
}

// NewReadCmd creates a new read command.
func NewReadCmd(flags *Flags) *ReadCmd {
	return &ReadCmd{flags: flags}
}

// Register adds the read command to the application.
func (cmd *ReadCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "read",
		Usage:     "Print the messages of a channel",
		UsageText: "classchat read [--channel <id>] [--last N] [--follow]",
		Description: `Prints a channel's history, oldest first. With --follow, keeps running and
prints inserts, edits, and deletes as they happen until interrupted or the
live feed is lost.

JSON output (the default) writes one object per line. Live changes are
wrapped as {"type": "...", "message": {...}} or {"type": "delete", "id": "..."}.

Examples:
  classchat read                        # #general as JSON lines
  classchat read --channel homework -n 20
  classchat read --follow --format text`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "channel",
				Aliases:     []string{"ch"},
				Usage:       "channel id (default: general)",
				Destination: &cmd.channel,
			},
			&cli.IntFlag{
				Name:        "last",
				Aliases:     []string{"n"},
				Usage:       "print only the last N messages of history",
				Destination: &cmd.last,
			},
			&cli.BoolFlag{
				Name:        "follow",
				Aliases:     []string{"f"},
				Usage:       "stream live changes after the history",
				Destination: &cmd.follow,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (json, text)",
				Value:       "json",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

// liveChange is the JSON line written for each followed change.
type liveChange struct {
	Type    chat.EventType `json:"type"`
	Message *chat.Message  `json:"message,omitempty"`
	ID      string         `json:"id,omitempty"`
}

func (cmd *ReadCmd) run(ctx context.Context, c *cli.Command) error {
	sess, err := cmd.flags.Session(ctx)
	if err != nil {
		return err
	}

	key, err := cmd.flags.channelKey(ctx, sess, cmd.channel)
	if err != nil {
		return err
	}

	if !cmd.follow {
		return cmd.printHistory(ctx, c.Root().Writer, key)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	// Subscribe before reading history so nothing committed in between is
	// lost. A message may then appear in both; the view tolerates that.
	var (
		out          = cmd.writer(ctx, c.Root().Writer)
		disconnected = make(chan error, 1)
	)

	sub, err := cmd.flags.Service.Follow(ctx, key, classchat.Handlers{
		OnInsert: func(m chat.Message) { out(liveChange{Type: chat.EventInsert, Message: &m}) },
		OnUpdate: func(m chat.Message) { out(liveChange{Type: chat.EventUpdate, Message: &m}) },
		OnDelete: func(id string) { out(liveChange{Type: chat.EventDelete, ID: id}) },
		OnDisconnect: func(err error) {
			disconnected <- err
		},
	})
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := cmd.printHistory(ctx, c.Root().Writer, key); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-disconnected:
		return err
	case <-sub.Done():
		return nil
	}
}

func (cmd *ReadCmd) printHistory(ctx context.Context, w io.Writer, key chat.Key) error {
	msgs, err := cmd.flags.Service.History(ctx, key)
	if err != nil {
		return err
	}

	if cmd.last > 0 && len(msgs) > cmd.last {
		msgs = msgs[len(msgs)-cmd.last:]
	}

	if cmd.format == "text" {
		p := printer.New(w)
		for _, m := range msgs {
			p.Message(m)
		}
		return nil
	}

	enc := json.NewEncoder(w)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			return err
		}
	}
	return nil
}

// writer returns the handler sink for live changes in the selected format.
func (cmd *ReadCmd) writer(ctx context.Context, w io.Writer) func(liveChange) {
	if cmd.format == "text" {
		p := printer.New(w)
		return func(ch liveChange) {
			switch ch.Type {
			case chat.EventInsert:
				p.Message(*ch.Message)
			case chat.EventUpdate:
				p.Infof("edited %s", ch.Message.ID)
				p.Message(*ch.Message)
			case chat.EventDelete:
				p.Infof("deleted %s", ch.ID)
			}
		}
	}

	enc := json.NewEncoder(w)
	return func(ch liveChange) {
		if err := enc.Encode(ch); err != nil {
			printer.Ctx(ctx).Errorf("write change: %v", err)
		}
	}
}
