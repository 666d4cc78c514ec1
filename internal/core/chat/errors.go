package chat

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrClassNotFound         = errors.New("no class matches that security code")
	ErrCodeInUse             = errors.New("security code already used by another class")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrEmptyMessage          = errors.New("empty message")
	ErrSendBlocked           = errors.New("sending is blocked")
	ErrStaleChannelResponse  = errors.New("response belongs to a channel that is no longer active")
	ErrAuthorResolution      = errors.New("could not resolve message author")
	ErrTransportDisconnected = errors.New("connection to live feed lost")
	ErrDurableWrite          = errors.New("message could not be saved")
	ErrProtectedChannel      = errors.New("protected channel cannot be deleted")
	ErrDuplicateChannelID    = errors.New("a channel with that id already exists")
	ErrAdminCheckFailed      = errors.New("admin privileges required")
	ErrInvalidAvatar         = errors.New("avatar must be a single emoji")
	ErrMediaRejected         = errors.New("media rejected")
)

// BlockScope says which restriction rejected a send.
type BlockScope string

const (
	ScopeMute  BlockScope = "muted"
	ScopeBlock BlockScope = "blocked"
)

// SendBlockedError is returned when moderation state rejects a send.
type SendBlockedError struct {
	Scope  BlockScope
	Reason string
	Until  *time.Time
}

func (e *SendBlockedError) Error() string {
	var msg string
	switch e.Scope {
	case ScopeBlock:
		msg = "chat is blocked for this class"
	default:
		msg = "you are muted"
	}

	if e.Until != nil {
		msg += " until " + e.Until.Local().Format("Jan 2 15:04")
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *SendBlockedError) Is(target error) bool {
	return target == ErrSendBlocked
}

// SendFailedError is returned when the durable write of an accepted send
// fails. Draft holds the user's input so it can be restored.
type SendFailedError struct {
	Draft Draft
	Err   error
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("%s: %v", ErrDurableWrite, e.Err)
}

func (e *SendFailedError) Unwrap() []error {
	return []error{ErrDurableWrite, e.Err}
}
