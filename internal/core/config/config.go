// Package config handles configuration loading and validation for classchat.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Live       LiveConfig       `yaml:"live"`
	Messages   MessagesConfig   `yaml:"messages"`
	Media      MediaConfig      `yaml:"media"`
	Moderation ModerationConfig `yaml:"moderation"`
	TUI        TUIConfig        `yaml:"tui"`
	DataDir    string           `yaml:"-"` // set by caller, not from config file
}

// LiveConfig tunes the polling live feed.
type LiveConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxFailures is the number of consecutive read failures before a
	// subscription reports a disconnect.
	MaxFailures int `yaml:"max_failures"`
}

// MessagesConfig holds message retention and optimistic send settings.
type MessagesConfig struct {
	MaxPerChannel int           `yaml:"max_per_channel"`
	MatchWindow   time.Duration `yaml:"match_window"`
}

// MediaConfig holds media upload settings.
type MediaConfig struct {
	Dir      string `yaml:"dir"`      // default <data-dir>/media
	BaseURL  string `yaml:"base_url"` // empty = file:// URLs
	MaxBytes int64  `yaml:"max_bytes"`
}

// ModerationConfig holds defaults for admin moderation actions.
type ModerationConfig struct {
	DefaultMuteReason   string        `yaml:"default_mute_reason"`
	DefaultBlockReason  string        `yaml:"default_block_reason"`
	DefaultMuteDuration time.Duration `yaml:"default_mute_duration"`
}

// TUIConfig holds interactive UI settings.
type TUIConfig struct {
	Markdown          *bool         `yaml:"markdown"`
	ModerationRefresh time.Duration `yaml:"moderation_refresh"`
}

// RenderMarkdown reports whether message content is rendered as markdown.
func (t TUIConfig) RenderMarkdown() bool {
	return t.Markdown == nil || *t.Markdown
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Live: LiveConfig{
			PollInterval: 500 * time.Millisecond,
			MaxFailures:  3,
		},
		Messages: MessagesConfig{
			MaxPerChannel: 1000,
			MatchWindow:   10 * time.Second,
		},
		Media: MediaConfig{
			MaxBytes: 50 * 1024 * 1024,
		},
		Moderation: ModerationConfig{
			DefaultMuteReason:   "rule violation",
			DefaultBlockReason:  "maintenance",
			DefaultMuteDuration: 15 * time.Minute,
		},
		TUI: TUIConfig{
			ModerationRefresh: 30 * time.Second,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Live.PollInterval == 0 {
		c.Live.PollInterval = defaults.Live.PollInterval
	}
	if c.Live.MaxFailures == 0 {
		c.Live.MaxFailures = defaults.Live.MaxFailures
	}
	if c.Messages.MaxPerChannel == 0 {
		c.Messages.MaxPerChannel = defaults.Messages.MaxPerChannel
	}
	if c.Messages.MatchWindow == 0 {
		c.Messages.MatchWindow = defaults.Messages.MatchWindow
	}
	if c.Media.MaxBytes == 0 {
		c.Media.MaxBytes = defaults.Media.MaxBytes
	}
	if c.Moderation.DefaultMuteReason == "" {
		c.Moderation.DefaultMuteReason = defaults.Moderation.DefaultMuteReason
	}
	if c.Moderation.DefaultBlockReason == "" {
		c.Moderation.DefaultBlockReason = defaults.Moderation.DefaultBlockReason
	}
	if c.Moderation.DefaultMuteDuration == 0 {
		c.Moderation.DefaultMuteDuration = defaults.Moderation.DefaultMuteDuration
	}
	if c.TUI.ModerationRefresh == 0 {
		c.TUI.ModerationRefresh = defaults.TUI.ModerationRefresh
	}
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	}
	if c.Live.PollInterval < 10*time.Millisecond {
		errs = errs.Append("live.poll_interval", fmt.Errorf("must be at least 10ms, got %s", c.Live.PollInterval))
	}
	if c.Live.MaxFailures < 1 {
		errs = errs.Append("live.max_failures", fmt.Errorf("must be at least 1"))
	}
	if c.Messages.MaxPerChannel < 1 {
		errs = errs.Append("messages.max_per_channel", fmt.Errorf("must be at least 1"))
	}
	if c.Messages.MatchWindow < 0 {
		errs = errs.Append("messages.match_window", fmt.Errorf("cannot be negative"))
	}
	if c.Media.MaxBytes < 1 {
		errs = errs.Append("media.max_bytes", fmt.Errorf("must be at least 1"))
	}
	if c.Moderation.DefaultMuteDuration < 0 {
		errs = errs.Append("moderation.default_mute_duration", fmt.Errorf("cannot be negative"))
	}
	if c.TUI.ModerationRefresh < time.Second {
		errs = errs.Append("tui.moderation_refresh", fmt.Errorf("must be at least 1s, got %s", c.TUI.ModerationRefresh))
	}

	return errs.ToError()
}

// MessagesDir returns the directory holding per-channel message files.
func (c *Config) MessagesDir() string {
	return filepath.Join(c.DataDir, "messages")
}

// DirectoryFile returns the path to the classes/users/channels JSON file.
func (c *Config) DirectoryFile() string {
	return filepath.Join(c.DataDir, "directory.json")
}

// ModerationFile returns the path to the mute/block JSON file.
func (c *Config) ModerationFile() string {
	return filepath.Join(c.DataDir, "moderation.json")
}

// LoginFile returns the path to the local login JSON file.
func (c *Config) LoginFile() string {
	return filepath.Join(c.DataDir, "login.json")
}

// AuditDir returns the directory holding the admin audit log.
func (c *Config) AuditDir() string {
	return c.DataDir
}

// MediaDir returns the directory uploads are written to.
func (c *Config) MediaDir() string {
	if c.Media.Dir != "" {
		return c.Media.Dir
	}
	return filepath.Join(c.DataDir, "media")
}
