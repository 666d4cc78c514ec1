package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hay-kot/classchat/internal/classchat"
	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/core/config"
	"github.com/hay-kot/classchat/internal/store/jsonfile"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// Service is the chat service for orchestrating operations
	Service *classchat.Service

	// Login stores the session of the local user between runs
	Login *jsonfile.LoginStore
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "classchat", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "classchat")
}

// Session loads the saved login and refreshes it from the directory so
// admin grants and avatar changes made elsewhere are visible.
func (f *Flags) Session(ctx context.Context) (chat.Session, error) {
	sess, err := f.Login.Load(ctx)
	if err != nil {
		if errors.Is(err, chat.ErrNotAuthenticated) {
			return chat.Session{}, fmt.Errorf("%w: run 'classchat join' first", err)
		}
		return chat.Session{}, fmt.Errorf("load login: %w", err)
	}

	sess, err = f.Service.Refresh(ctx, sess)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			_ = f.Login.Clear(ctx)
			return chat.Session{}, fmt.Errorf("%w: your account no longer exists, run 'classchat join' again", chat.ErrNotAuthenticated)
		}
		return chat.Session{}, err
	}

	if err := f.Login.Save(ctx, sess); err != nil {
		return chat.Session{}, fmt.Errorf("save login: %w", err)
	}
	return sess, nil
}

// Admin loads the session and authorizes it for admin actions.
func (f *Flags) Admin(ctx context.Context) (*classchat.Actions, error) {
	sess, err := f.Session(ctx)
	if err != nil {
		return nil, err
	}
	return f.Service.Authorize(ctx, sess)
}

// channelKey resolves a channel id for the session's class. An empty id
// selects the default channel.
func (f *Flags) channelKey(ctx context.Context, sess chat.Session, channelID string) (chat.Key, error) {
	if channelID == "" {
		channelID = classchat.DefaultChannelID
	}

	channels, err := f.Service.Channels(ctx, sess.ClassID)
	if err != nil {
		return chat.Key{}, fmt.Errorf("list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.ID == channelID {
			return ch.Key(), nil
		}
	}
	return chat.Key{}, fmt.Errorf("channel %q: %w", channelID, chat.ErrNotFound)
}
