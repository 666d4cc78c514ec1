package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/classchat/internal/classchat"
	"github.com/hay-kot/classchat/internal/commands"
	"github.com/hay-kot/classchat/internal/core/config"
	"github.com/hay-kot/classchat/internal/printer"
	"github.com/hay-kot/classchat/internal/store/jsonfile"
	"github.com/hay-kot/classchat/internal/store/media"
	"github.com/hay-kot/classchat/pkg/utils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	if err := setupLogger("info", "", nil); err != nil {
		panic(err)
	}

	// .env is optional; it only seeds CLASSCHAT_* variables for local setups
	_ = godotenv.Load()

	var (
		p     = printer.New(os.Stderr)
		ctx   = printer.NewContext(context.Background(), p)
		flags = &commands.Flags{}
	)

	var deferredLogs *utils.DeferredWriter

	app := &cli.Command{
		Name:      "classchat",
		Usage:     "Chat with your class from the terminal",
		UsageText: "classchat [global options] command [command options]",
		Description: `Classchat is a class-scoped chat. Each class is guarded by a security code
and has its own channels, members, and admins.

Run 'classchat class create' to start a class, or 'classchat join' to join one.
Run 'classchat' with no arguments to open the interactive chat.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("CLASSCHAT_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (optional)",
				Sources:     cli.EnvVars("CLASSCHAT_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("CLASSCHAT_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("CLASSCHAT_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Detect TUI mode: no subcommand means TUI (default action)
			isTUI := len(c.Args().Slice()) == 0

			// In TUI mode, buffer logs to display after exit
			var deferred io.Writer
			if isTUI {
				deferredLogs = &utils.DeferredWriter{}
				deferred = deferredLogs
			}

			if err := setupLogger(flags.LogLevel, flags.LogFile, deferred); err != nil {
				return ctx, err
			}

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			flags.Service = newService(cfg)
			flags.Login = jsonfile.NewLoginStore(cfg.LoginFile())
			return ctx, nil
		},
	}

	tuiCmd := commands.NewTuiCmd(flags)

	app = commands.NewClassCmd(flags).Register(app)
	app = commands.NewJoinCmd(flags).Register(app)
	app = commands.NewAccountCmd(flags).Register(app)
	app = commands.NewChannelsCmd(flags).Register(app)
	app = commands.NewMembersCmd(flags).Register(app)
	app = commands.NewReadCmd(flags).Register(app)
	app = commands.NewSendCmd(flags).Register(app)
	app = commands.NewStatusCmd(flags).Register(app)
	app = commands.NewAdminCmd(flags).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	// Register TUI flags on root command
	app.Flags = append(app.Flags, tuiCmd.Flags()...)

	// Set TUI as default action when no subcommand is provided
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'classchat --help' for usage", c.Args().First())
		}
		return tuiCmd.Run(ctx, c)
	}

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Println()
		printer.Ctx(ctx).FatalError(err)
		exitCode = 1
	}

	// Flush deferred logs to console after TUI exits
	if deferredLogs != nil {
		if err := deferredLogs.Flush(zerolog.ConsoleWriter{Out: os.Stderr}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
		}
	}

	os.Exit(exitCode)
}

// newService builds the chat service over the JSON file stores in the data
// directory.
func newService(cfg *config.Config) *classchat.Service {
	var (
		logger    = log.With().Str("component", "classchat").Logger()
		messages  = jsonfile.NewMsgStore(cfg.MessagesDir()).WithMaxMessages(cfg.Messages.MaxPerChannel)
		directory = jsonfile.NewDirectory(cfg.DirectoryFile())
	)

	feed := jsonfile.NewFeed(messages, log.With().Str("component", "feed").Logger()).
		WithInterval(cfg.Live.PollInterval).
		WithMaxFailures(cfg.Live.MaxFailures)

	deps := classchat.Deps{
		Directory:  directory,
		Catalog:    directory,
		Messages:   messages,
		Feed:       feed,
		Moderation: jsonfile.NewModerationStore(cfg.ModerationFile()),
		Media:      media.New(cfg.MediaDir(), cfg.Media.BaseURL, cfg.Media.MaxBytes, log.With().Str("component", "media").Logger()),
		Audit:      jsonfile.NewAuditStore(cfg.AuditDir()),
	}

	opts := classchat.Options{
		MatchWindow:         cfg.Messages.MatchWindow,
		DefaultMuteDuration: cfg.Moderation.DefaultMuteDuration,
		DefaultMuteReason:   cfg.Moderation.DefaultMuteReason,
		DefaultBlockReason:  cfg.Moderation.DefaultBlockReason,
	}

	return classchat.New(deps, opts, logger)
}

func setupLogger(level string, logFile string, deferred io.Writer) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		// Create log directory if it doesn't exist
		logDir := filepath.Dir(logFile)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		// Open log file
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		if deferred != nil {
			// TUI mode with explicit log file - write to both file and deferred buffer
			output = io.MultiWriter(file, deferred)
		} else {
			// Write to both console and file
			output = io.MultiWriter(
				zerolog.ConsoleWriter{Out: os.Stderr},
				file,
			)
		}
	} else if deferred != nil {
		// TUI mode without log file - buffer for display after exit
		output = deferred
	}

	log.Logger = log.Output(output).Level(parsedLevel)

	return nil
}
