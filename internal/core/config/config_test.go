package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)

	names := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		names = append(names, fe.Field)
	}
	return names
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), dataDir)
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, 500*time.Millisecond, cfg.Live.PollInterval)
	assert.Equal(t, 3, cfg.Live.MaxFailures)
	assert.Equal(t, 1000, cfg.Messages.MaxPerChannel)
	assert.Equal(t, 10*time.Second, cfg.Messages.MatchWindow)
	assert.Equal(t, int64(50*1024*1024), cfg.Media.MaxBytes)
	assert.Equal(t, "rule violation", cfg.Moderation.DefaultMuteReason)
	assert.Equal(t, "maintenance", cfg.Moderation.DefaultBlockReason)
	assert.Equal(t, 15*time.Minute, cfg.Moderation.DefaultMuteDuration)
	assert.True(t, cfg.TUI.RenderMarkdown())
}

func TestLoad_OverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
live:
  poll_interval: 250ms
messages:
  match_window: 5s
media:
  base_url: https://cdn.example.com
moderation:
  default_mute_reason: "be kind"
tui:
  markdown: false
`)

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Live.PollInterval)
	assert.Equal(t, 3, cfg.Live.MaxFailures, "unset values fall back to defaults")
	assert.Equal(t, 5*time.Second, cfg.Messages.MatchWindow)
	assert.Equal(t, "https://cdn.example.com", cfg.Media.BaseURL)
	assert.Equal(t, "be kind", cfg.Moderation.DefaultMuteReason)
	assert.Equal(t, "maintenance", cfg.Moderation.DefaultBlockReason)
	assert.False(t, cfg.TUI.RenderMarkdown())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "live: [unterminated")

	_, err := Load(path, t.TempDir())
	assert.ErrorContains(t, err, "parse config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
live:
  poll_interval: 1ms
  max_failures: -1
tui:
  moderation_refresh: 100ms
`)

	_, err := Load(path, t.TempDir())
	require.Error(t, err)
	assert.ElementsMatch(t,
		[]string{"live.poll_interval", "live.max_failures", "tui.moderation_refresh"},
		fieldNames(t, err),
	)
}

func TestValidate_EmptyDataDir(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.Validate()
	assert.Equal(t, []string{"data_dir"}, fieldNames(t, err))
}

func TestValidateDeep(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, cfg *Config) string
		fields []string
	}{
		{
			name:   "valid",
			mutate: func(t *testing.T, cfg *Config) string { return "" },
		},
		{
			name: "data dir is a file",
			mutate: func(t *testing.T, cfg *Config) string {
				path := filepath.Join(t.TempDir(), "file")
				require.NoError(t, os.WriteFile(path, nil, 0o644))
				cfg.DataDir = path
				return ""
			},
			fields: []string{"data_dir"},
		},
		{
			name: "config path is a directory",
			mutate: func(t *testing.T, cfg *Config) string {
				return t.TempDir()
			},
			fields: []string{"config"},
		},
		{
			name: "relative base url",
			mutate: func(t *testing.T, cfg *Config) string {
				cfg.Media.BaseURL = "media/files"
				return ""
			},
			fields: []string{"media.base_url"},
		},
		{
			name: "basic validation is included",
			mutate: func(t *testing.T, cfg *Config) string {
				cfg.Messages.MaxPerChannel = -5
				return ""
			},
			fields: []string{"messages.max_per_channel"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = t.TempDir()
			configPath := tt.mutate(t, &cfg)

			err := cfg.ValidateDeep(configPath)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			assert.ElementsMatch(t, tt.fields, fieldNames(t, err))
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Messages.MatchWindow = 2 * time.Minute
	cfg.Live.PollInterval = 10 * time.Second

	items := []string{}
	for _, w := range cfg.Warnings() {
		items = append(items, w.Item)
	}
	assert.ElementsMatch(t, []string{"match_window", "poll_interval", "base_url"}, items)

	cfg.Media.BaseURL = "https://cdn.example.com"
	cfg.Messages.MatchWindow = time.Second
	cfg.Live.PollInterval = time.Second
	assert.Empty(t, cfg.Warnings())
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"

	assert.Equal(t, filepath.Join("/data", "media"), cfg.MediaDir())
	cfg.Media.Dir = "/srv/media"
	assert.Equal(t, "/srv/media", cfg.MediaDir())
	assert.Equal(t, filepath.Join("/data", "messages"), cfg.MessagesDir())
	assert.Equal(t, filepath.Join("/data", "directory.json"), cfg.DirectoryFile())
}
