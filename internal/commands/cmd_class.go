package commands

import (
	"context"
	"fmt"

	"github.com/hay-kot/classchat/internal/classchat"
	"github.com/hay-kot/classchat/internal/printer"
	"github.com/hay-kot/classchat/pkg/randid"
	"github.com/urfave/cli/v3"
)

type ClassCmd struct {
	flags *Flags

	// create flags
	name   string
	code   string
	admin  string
	avatar string
	random bool
}

// NewClassCmd creates a new class command.
func NewClassCmd(flags *Flags) *ClassCmd {
	return &ClassCmd{flags: flags}
}

// Register adds the class command to the application.
func (cmd *ClassCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "class",
		Usage: "Manage classes",
		Commands: []*cli.Command{
			cmd.createCmd(),
		},
	})

	return app
}

func (cmd *ClassCmd) createCmd() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a class and sign in as its first admin",
		UsageText: "classchat class create --name <name> --code <code> --admin <your name> [--avatar <emoji>]",
		Description: `Creates a class guarded by a security code and provisions the default
channels. The creator becomes the class's first admin and is signed in.

Share the security code with students so they can run 'classchat join'.

Missing values are prompted for when running in a terminal.

Examples:
  classchat class create --name "Physics 101" --code s3cret --admin "Dr. Ada"
  classchat class create --name Chem --code lab42 --admin Sam --avatar 🧪
  classchat class create --name Art --admin Kim --generate-code`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Aliases:     []string{"n"},
				Usage:       "class display name",
				Destination: &cmd.name,
			},
			&cli.StringFlag{
				Name:        "code",
				Usage:       "security code students use to join",
				Destination: &cmd.code,
			},
			&cli.StringFlag{
				Name:        "admin",
				Usage:       "display name of the admin account",
				Destination: &cmd.admin,
			},
			&cli.StringFlag{
				Name:        "avatar",
				Usage:       "single emoji avatar for the admin account",
				Destination: &cmd.avatar,
			},
			&cli.BoolFlag{
				Name:        "generate-code",
				Usage:       "generate a random security code and print it",
				Destination: &cmd.random,
			},
		},
		Action: cmd.runCreate,
	}
}

func (cmd *ClassCmd) runCreate(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	in := classchat.CreateClassInput{
		Name:        cmd.name,
		Code:        cmd.code,
		AdminName:   cmd.admin,
		AdminAvatar: cmd.avatar,
	}

	if cmd.random {
		if in.Code != "" {
			return fmt.Errorf("--code and --generate-code are mutually exclusive")
		}
		in.Code = randid.Code(3, 4)
	}

	if in.Name == "" || in.Code == "" || in.AdminName == "" {
		fields := accountFields{
			ClassName: &in.Name,
			Code:      &in.Code,
			Name:      &in.AdminName,
			Avatar:    &in.AdminAvatar,
		}
		if err := promptAccount(ctx, "Create a class", fields); err != nil {
			return err
		}
	}

	sess, err := cmd.flags.Service.CreateClass(ctx, in)
	if err != nil {
		return err
	}

	warnReplacedLogin(ctx, cmd.flags)
	if err := cmd.flags.Login.Save(ctx, sess); err != nil {
		return fmt.Errorf("save login: %w", err)
	}

	p.Success(fmt.Sprintf("Created class %s", in.Name), fmt.Sprintf("signed in as %s (admin)", sess.User.Name))
	if cmd.random {
		p.Infof("Security code: %s", p.Bold(in.Code))
	}
	return nil
}
