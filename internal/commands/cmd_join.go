package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/hay-kot/classchat/internal/classchat"
	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/printer"
	"github.com/hay-kot/classchat/internal/styles"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

type JoinCmd struct {
	flags *Flags

	code   string
	name   string
	avatar string
}

// NewJoinCmd creates a new join command.
func NewJoinCmd(flags *Flags) *JoinCmd {
	return &JoinCmd{flags: flags}
}

// Register adds the join command to the application.
func (cmd *JoinCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "join",
		Usage:     "Join a class with its security code",
		UsageText: "classchat join --code <code> --name <your name> [--avatar <emoji>]",
		Description: `Joins the class guarded by the given security code and signs in as a new
member. The login is remembered until 'classchat logout'.

Missing values are prompted for when running in a terminal.

Examples:
  classchat join --code s3cret --name "Grace"
  classchat join --code s3cret --name Linus --avatar 🐧`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "code",
				Usage:       "class security code",
				Destination: &cmd.code,
			},
			&cli.StringFlag{
				Name:        "name",
				Aliases:     []string{"n"},
				Usage:       "your display name",
				Destination: &cmd.name,
			},
			&cli.StringFlag{
				Name:        "avatar",
				Usage:       "single emoji avatar",
				Destination: &cmd.avatar,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *JoinCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	in := classchat.JoinInput{
		Code:   cmd.code,
		Name:   cmd.name,
		Avatar: cmd.avatar,
	}

	if in.Code == "" || in.Name == "" {
		fields := accountFields{
			Code:   &in.Code,
			Name:   &in.Name,
			Avatar: &in.Avatar,
		}
		if err := promptAccount(ctx, "Join a class", fields); err != nil {
			return err
		}
	}

	sess, err := cmd.flags.Service.Join(ctx, in)
	if err != nil {
		return err
	}

	warnReplacedLogin(ctx, cmd.flags)
	if err := cmd.flags.Login.Save(ctx, sess); err != nil {
		return fmt.Errorf("save login: %w", err)
	}

	p.Successf("Joined as %s %s", sess.Author().Glyph(), sess.User.Name)
	return nil
}

// warnReplacedLogin warns when a new sign-in is about to replace a saved one.
func warnReplacedLogin(ctx context.Context, flags *Flags) {
	prev, err := flags.Login.Load(ctx)
	if err != nil {
		return
	}
	printer.Ctx(ctx).Warnf("Signed out of %s (user %s)", prev.User.Name, prev.User.ID)
}

// accountFields points at the values an account form fills in. Nil fields
// are not asked for.
type accountFields struct {
	ClassName *string
	Code      *string
	Name      *string
	Avatar    *string
}

// promptAccount asks for account details interactively. Fails when stdin is
// not a terminal so scripts get a clear error instead of hanging.
func promptAccount(ctx context.Context, title string, fields accountFields) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("missing required flags (stdin is not a terminal, cannot prompt)")
	}

	var inputs []huh.Field
	if fields.ClassName != nil {
		inputs = append(inputs, huh.NewInput().
			Title("Class name").
			Value(fields.ClassName).
			Validate(required("class name")))
	}
	if fields.Code != nil {
		inputs = append(inputs, huh.NewInput().
			Title("Security code").
			EchoMode(huh.EchoModePassword).
			Value(fields.Code).
			Validate(required("security code")))
	}
	if fields.Name != nil {
		inputs = append(inputs, huh.NewInput().
			Title("Your name").
			Value(fields.Name).
			Validate(required("name")))
	}
	if fields.Avatar != nil {
		inputs = append(inputs, huh.NewInput().
			Title("Avatar").
			Description("One emoji, leave empty to use your initials").
			Value(fields.Avatar).
			Validate(chat.ValidateAvatar))
	}

	form := huh.NewForm(huh.NewGroup(inputs...).Title(title)).WithTheme(styles.FormTheme())
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("cancelled")
		}
		return fmt.Errorf("run form: %w", err)
	}
	return nil
}

func required(label string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}
