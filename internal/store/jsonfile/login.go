package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
)

// LoginFile is the JSON structure of the local login file.
type LoginFile struct {
	Session chat.Session `json:"session"`
	SavedAt time.Time    `json:"saved_at"`
}

// LoginStore persists the session of the local user between runs.
type LoginStore struct {
	path string
	mu   sync.Mutex
}

// NewLoginStore creates a login store at path.
func NewLoginStore(path string) *LoginStore {
	return &LoginStore{path: path}
}

// Load returns the saved session. Returns chat.ErrNotAuthenticated when no
// one is logged in.
func (s *LoginStore) Load(ctx context.Context) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var file LoginFile
	ok, err := readJSON(s.path, &file)
	if err != nil {
		return chat.Session{}, err
	}
	if !ok || !file.Session.Authenticated() {
		return chat.Session{}, chat.ErrNotAuthenticated
	}
	return file.Session, nil
}

// Save stores sess as the current login.
func (s *LoginStore) Save(ctx context.Context, sess chat.Session) error {
	if !sess.Authenticated() {
		return chat.ErrNotAuthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(s.path, LoginFile{Session: sess, SavedAt: time.Now()})
}

// Clear removes the current login. Clearing when logged out is not an error.
func (s *LoginStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove login: %w", err)
	}
	return nil
}
