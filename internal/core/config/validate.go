package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate(), this also checks file access and the media base URL.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if err := c.Validate(); err != nil {
		errs = appendFieldErrors(errs, err)
	}

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			errs = errs.Append("config", fmt.Errorf("%s is a directory, not a file", configPath))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("config", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	dirs := []struct{ field, path string }{
		{"data_dir", c.DataDir},
		{"media.dir", c.Media.Dir},
	}
	for _, d := range dirs {
		field, dir := d.field, d.path
		if dir == "" {
			continue
		}
		info, err := os.Stat(dir)
		switch {
		case err == nil && !info.IsDir():
			errs = errs.Append(field, fmt.Errorf("%s exists but is not a directory", dir))
		case err != nil && !os.IsNotExist(err):
			errs = errs.Append(field, fmt.Errorf("cannot access %s: %w", dir, err))
		}
	}

	if c.Media.BaseURL != "" {
		u, err := url.Parse(c.Media.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = errs.Append("media.base_url", fmt.Errorf("must be an absolute URL, got %q", c.Media.BaseURL))
		}
	}

	return errs.ToError()
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Messages.MatchWindow > time.Minute {
		warnings = append(warnings, ValidationWarning{
			Category: "Messages",
			Item:     "match_window",
			Message:  fmt.Sprintf("%s window may pair a pending send with an older identical message", c.Messages.MatchWindow),
		})
	}

	if c.Live.PollInterval > 5*time.Second {
		warnings = append(warnings, ValidationWarning{
			Category: "Live",
			Item:     "poll_interval",
			Message:  fmt.Sprintf("%s between polls; new messages will feel slow", c.Live.PollInterval),
		})
	}

	if c.Media.BaseURL == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Media",
			Item:     "base_url",
			Message:  "no base_url set; media links are local file:// paths only visible on this machine",
		})
	}

	return warnings
}

func appendFieldErrors(errs criterio.FieldErrorsBuilder, err error) criterio.FieldErrorsBuilder {
	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			errs = errs.Append(fe.Field, fe.Err)
		}
		return errs
	}
	return errs.Append("", err)
}
