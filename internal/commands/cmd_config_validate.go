package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hay-kot/criterio"
	"github.com/hay-kot/classchat/internal/core/config"
	"github.com/hay-kot/classchat/internal/printer"
	"github.com/urfave/cli/v3"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
	strict bool
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Validate configuration file",
				UsageText: "classchat config validate [--format text|json] [--strict]",
				Description: `Validates the configuration file: durations, limits, the media base URL, and
the storage paths classchat reads and writes.

The resolved storage paths are printed so you can check where messages,
moderation records, and uploads end up.

With --strict, warnings fail validation too.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
					&cli.BoolFlag{
						Name:        "strict",
						Usage:       "treat warnings as errors",
						Destination: &cmd.strict,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type storagePath struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// validationReport is the outcome of validating one loaded config.
type validationReport struct {
	Valid    bool                       `json:"valid"`
	Config   string                     `json:"config"`
	Paths    []storagePath              `json:"paths"`
	Errors   []fieldError               `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func buildReport(cfg *config.Config, configPath string, strict bool) validationReport {
	report := validationReport{
		Config: configPath,
		Paths: []storagePath{
			{Name: "data", Path: cfg.DataDir},
			{Name: "messages", Path: cfg.MessagesDir()},
			{Name: "directory", Path: cfg.DirectoryFile()},
			{Name: "moderation", Path: cfg.ModerationFile()},
			{Name: "media", Path: cfg.MediaDir()},
			{Name: "login", Path: cfg.LoginFile()},
		},
		Warnings: cfg.Warnings(),
	}

	for i := range report.Paths {
		_, err := os.Stat(report.Paths[i].Path)
		report.Paths[i].Exists = err == nil
	}

	for _, fe := range extractFieldErrors(cfg.ValidateDeep(configPath)) {
		field := fe.Field
		if field == "" {
			field = "config"
		}
		report.Errors = append(report.Errors, fieldError{Field: field, Message: fe.Err.Error()})
	}

	report.Valid = len(report.Errors) == 0 && (!strict || len(report.Warnings) == 0)
	return report
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.flags.Config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	report := buildReport(cmd.flags.Config, cmd.flags.ConfigPath, cmd.strict)

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		cmd.outputText(printer.Ctx(ctx), report)
	}

	if !report.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

// extractFieldErrors extracts field errors from a validation error.
func extractFieldErrors(err error) criterio.FieldErrors {
	if err == nil {
		return nil
	}
	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs
	}
	return criterio.FieldErrors{{Err: err}}
}

func (cmd *ConfigValidateCmd) outputText(p *printer.Printer, report validationReport) {
	p.Section("Storage")
	for _, sp := range report.Paths {
		if sp.Exists {
			p.CheckItem(sp.Name, sp.Path)
		} else {
			p.Item(sp.Name, sp.Path+" (not created yet)")
		}
	}

	if len(report.Errors) > 0 {
		p.Section("Errors")
		for _, fe := range report.Errors {
			p.FailItem(fe.Field, fe.Message)
		}
	}

	if len(report.Warnings) > 0 {
		p.Section("Warnings")
		for _, warn := range report.Warnings {
			label := warn.Category
			if warn.Item != "" {
				label += "." + warn.Item
			}
			p.WarnItem(label, warn.Message)
		}
	}

	p.Printf("")
	switch {
	case report.Valid && len(report.Warnings) > 0:
		p.Successf("Configuration is valid (%d warning(s))", len(report.Warnings))
	case report.Valid:
		p.Successf("Configuration is valid")
	case len(report.Errors) == 0:
		p.Errorf("%d warning(s) in strict mode", len(report.Warnings))
	default:
		p.Errorf("%d error(s), %d warning(s)", len(report.Errors), len(report.Warnings))
	}
}
