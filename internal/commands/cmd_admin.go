package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/printer"
	"github.com/urfave/cli/v3"
)

type AdminCmd struct {
	flags *Flags

	// mute/block flags
	duration time.Duration
	reason   string

	// channel flags
	private bool

	// log flags
	last   int
	format string

	// prune flags
	olderThan time.Duration
	pattern   string
}

// NewAdminCmd creates a new admin command.
func NewAdminCmd(flags *Flags) *AdminCmd {
	return &AdminCmd{flags: flags}
}

// Register adds the admin command to the application.
func (cmd *AdminCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "admin",
		Usage: "Moderate your class (admins only)",
		Description: `Admin commands for moderating a class.

Every command checks that the signed in user is an admin of the class.
Actions are recorded in the class audit log, see 'classchat admin log'.`,
		Commands: []*cli.Command{
			cmd.muteCmd(),
			cmd.unmuteCmd(),
			cmd.mutesCmd(),
			cmd.blockCmd(),
			cmd.unblockCmd(),
			cmd.channelCmd(),
			cmd.messageCmd(),
			cmd.grantCmd(),
			cmd.logCmd(),
			cmd.pruneCmd(),
		},
	})

	return app
}

func (cmd *AdminCmd) durationFlag(usage string) cli.Flag {
	return &cli.DurationFlag{
		Name:        "for",
		Usage:       usage,
		Destination: &cmd.duration,
	}
}

func (cmd *AdminCmd) reasonFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "reason",
		Aliases:     []string{"r"},
		Usage:       "reason shown to affected users",
		Destination: &cmd.reason,
	}
}

func (cmd *AdminCmd) muteCmd() *cli.Command {
	return &cli.Command{
		Name:      "mute",
		Usage:     "Stop a member from sending messages",
		UsageText: "classchat admin mute <user-id> [--for 30m] [--reason <text>]",
		Description: `Mutes a member. Without --for the configured default duration is used.
A new mute replaces any existing one. Use 'classchat members' to find ids.`,
		Flags:  []cli.Flag{cmd.durationFlag("mute duration (e.g. 10m, 2h)"), cmd.reasonFlag()},
		Action: cmd.runMute,
	}
}

func (cmd *AdminCmd) unmuteCmd() *cli.Command {
	return &cli.Command{
		Name:      "unmute",
		Usage:     "Lift a member's mute",
		UsageText: "classchat admin unmute <user-id>",
		Action:    cmd.runUnmute,
	}
}

func (cmd *AdminCmd) mutesCmd() *cli.Command {
	return &cli.Command{
		Name:      "mutes",
		Usage:     "List active mutes",
		UsageText: "classchat admin mutes",
		Action:    cmd.runMutes,
	}
}

func (cmd *AdminCmd) blockCmd() *cli.Command {
	return &cli.Command{
		Name:      "block",
		Usage:     "Block sending for the whole class",
		UsageText: "classchat admin block [--for 1h] [--reason <text>]",
		Description: `Blocks every non-admin member from sending. Without --for the block lasts
until 'classchat admin unblock'.`,
		Flags:  []cli.Flag{cmd.durationFlag("block duration (default: until unblocked)"), cmd.reasonFlag()},
		Action: cmd.runBlock,
	}
}

func (cmd *AdminCmd) unblockCmd() *cli.Command {
	return &cli.Command{
		Name:      "unblock",
		Usage:     "Lift the class block",
		UsageText: "classchat admin unblock",
		Action:    cmd.runUnblock,
	}
}

func (cmd *AdminCmd) channelCmd() *cli.Command {
	return &cli.Command{
		Name:  "channel",
		Usage: "Create or delete channels",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a channel",
				UsageText: "classchat admin channel create [--private] <name>",
				Description: `Creates a channel in the "groups" section. The id is derived from the name:
lowercased with whitespace replaced by hyphens. Private channels only accept
messages from admins.`,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "private",
						Usage:       "only admins may post",
						Destination: &cmd.private,
					},
				},
				Action: cmd.runChannelCreate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a channel",
				UsageText: "classchat admin channel delete <channel-id>",
				Action:    cmd.runChannelDelete,
			},
		},
	}
}

func (cmd *AdminCmd) messageCmd() *cli.Command {
	return &cli.Command{
		Name:  "message",
		Usage: "Edit or delete messages",
		Commands: []*cli.Command{
			{
				Name:      "edit",
				Usage:     "Replace the text of a message",
				UsageText: "classchat admin message edit <channel-id> <message-id> <text>",
				Action:    cmd.runMessageEdit,
			},
			{
				Name:      "delete",
				Usage:     "Delete a message",
				UsageText: "classchat admin message delete <channel-id> <message-id>",
				Action:    cmd.runMessageDelete,
			},
		},
	}
}

func (cmd *AdminCmd) grantCmd() *cli.Command {
	return &cli.Command{
		Name:      "grant",
		Usage:     "Make a member an admin",
		UsageText: "classchat admin grant <user-id>",
		Action:    cmd.runGrant,
	}
}

func (cmd *AdminCmd) logCmd() *cli.Command {
	return &cli.Command{
		Name:      "log",
		Usage:     "Show the audit log",
		UsageText: "classchat admin log [--last N] [--format text|json]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "last",
				Aliases:     []string{"n"},
				Usage:       "show only the N most recent entries",
				Value:       20,
				Destination: &cmd.last,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.runLog,
	}
}

func (cmd *AdminCmd) pruneCmd() *cli.Command {
	return &cli.Command{
		Name:      "prune",
		Usage:     "Delete old messages",
		UsageText: "classchat admin prune --older-than <duration> [--channel <pattern>]",
		Description: `Deletes messages older than the given age. --channel accepts a glob
pattern matched against channel ids.

Examples:
  classchat admin prune --older-than 720h
  classchat admin prune --older-than 168h --channel "home*"`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "older-than",
				Usage:       "minimum message age to delete",
				Required:    true,
				Destination: &cmd.olderThan,
			},
			&cli.StringFlag{
				Name:        "channel",
				Aliases:     []string{"ch"},
				Usage:       "channel id glob pattern (default: all channels)",
				Destination: &cmd.pattern,
			},
		},
		Action: cmd.runPrune,
	}
}

// args returns exactly n positional arguments or a usage error.
func args(c *cli.Command, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("usage: %s", c.UsageText)
	}
	return c.Args().Slice(), nil
}

func (cmd *AdminCmd) runMute(ctx context.Context, c *cli.Command) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}

	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	rec, err := actions.MuteUser(ctx, a[0], cmd.duration, cmd.reason)
	if err != nil {
		return err
	}

	printer.Ctx(ctx).Success(fmt.Sprintf("Muted %s", rec.UserID), describeRestriction(rec.Reason, rec.Until))
	return nil
}

func (cmd *AdminCmd) runUnmute(ctx context.Context, c *cli.Command) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}

	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	if err := actions.UnmuteUser(ctx, a[0]); err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Unmuted %s", a[0])
	return nil
}

func (cmd *AdminCmd) runMutes(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	mutes, err := actions.Mutes(ctx)
	if err != nil {
		return err
	}

	now, active := time.Now(), 0
	for _, m := range mutes {
		if !m.ActiveAt(now) {
			continue
		}
		active++
		p.WarnItem(m.UserID, describeRestriction(m.Reason, m.Until))
	}

	if active == 0 {
		p.Infof("No active mutes")
	}
	return nil
}

func (cmd *AdminCmd) runBlock(ctx context.Context, c *cli.Command) error {
	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	block, err := actions.BlockClass(ctx, cmd.reason, cmd.duration)
	if err != nil {
		return err
	}

	printer.Ctx(ctx).Success("Class blocked", describeRestriction(block.Reason, block.Until))
	return nil
}

func (cmd *AdminCmd) runUnblock(ctx context.Context, c *cli.Command) error {
	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	if err := actions.UnblockClass(ctx); err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Class unblocked")
	return nil
}

func (cmd *AdminCmd) runChannelCreate(ctx context.Context, c *cli.Command) error {
	if c.NArg() == 0 {
		return fmt.Errorf("usage: %s", c.UsageText)
	}

	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	ch, err := actions.CreateChannel(ctx, strings.Join(c.Args().Slice(), " "), cmd.private)
	if err != nil {
		if errors.Is(err, chat.ErrDuplicateChannelID) {
			return fmt.Errorf("a channel with id %q already exists", chat.ChannelID(strings.Join(c.Args().Slice(), " ")))
		}
		return err
	}

	printer.Ctx(ctx).Successf("Created #%s", ch.ID)
	return nil
}

func (cmd *AdminCmd) runChannelDelete(ctx context.Context, c *cli.Command) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}

	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	if err := actions.DeleteChannel(ctx, a[0]); err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Deleted #%s", a[0])
	return nil
}

func (cmd *AdminCmd) runMessageEdit(ctx context.Context, c *cli.Command) error {
	if c.NArg() < 3 {
		return fmt.Errorf("usage: %s", c.UsageText)
	}
	a := c.Args().Slice()

	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	msg, err := actions.EditMessage(ctx, a[0], a[1], strings.Join(a[2:], " "))
	if err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Edited %s in #%s", msg.ID, msg.ChannelID)
	return nil
}

func (cmd *AdminCmd) runMessageDelete(ctx context.Context, c *cli.Command) error {
	a, err := args(c, 2)
	if err != nil {
		return err
	}

	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	if err := actions.DeleteMessage(ctx, a[0], a[1]); err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Deleted %s from #%s", a[1], a[0])
	return nil
}

func (cmd *AdminCmd) runGrant(ctx context.Context, c *cli.Command) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}

	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	user, err := actions.Grant(ctx, a[0])
	if err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("%s is now an admin", user.Name)
	return nil
}

func (cmd *AdminCmd) runLog(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	entries, err := actions.Log(ctx, cmd.last)
	if err != nil {
		return err
	}

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	if len(entries) == 0 {
		p.Infof("No admin actions recorded")
		return nil
	}

	for _, e := range entries {
		label := e.Action
		if e.Target != "" {
			label += " " + e.Target
		}
		detail := humanize.Time(e.Timestamp) + " by " + e.ActorID
		if e.Detail != "" {
			detail = e.Detail + ", " + detail
		}
		p.Item(label, detail)
	}
	return nil
}

func (cmd *AdminCmd) runPrune(ctx context.Context, c *cli.Command) error {
	actions, err := cmd.flags.Admin(ctx)
	if err != nil {
		return err
	}

	n, err := actions.Prune(ctx, cmd.pattern, cmd.olderThan)
	if err != nil {
		return err
	}

	if n == 0 {
		printer.Ctx(ctx).Infof("No messages older than %s", cmd.olderThan)
		return nil
	}

	printer.Ctx(ctx).Successf("Pruned %d message(s)", n)
	return nil
}

// describeRestriction renders a mute or block for confirmation output.
func describeRestriction(reason string, until *time.Time) string {
	when := "until lifted"
	if until != nil {
		when = "ends " + humanize.Time(*until)
	}
	if reason == "" {
		return when
	}
	return reason + ", " + when
}
