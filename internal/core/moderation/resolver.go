// Package moderation decides whether a user may currently send messages.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hay-kot/classchat/internal/core/chat"
)

// Verdict is the outcome of a send permission check.
type Verdict struct {
	Allowed bool
	Scope   chat.BlockScope
	Reason  string
	Until   *time.Time
}

// Err converts a rejecting verdict into the error returned to senders.
// Returns nil when the verdict allows sending.
func (v Verdict) Err() error {
	if v.Allowed {
		return nil
	}
	if v.Scope == "" {
		return chat.ErrNotAuthenticated
	}
	return &chat.SendBlockedError{Scope: v.Scope, Reason: v.Reason, Until: v.Until}
}

// Banner renders the verdict for display, with the expiry relative to now.
// Returns an empty string when sending is allowed.
func (v Verdict) Banner(now time.Time) string {
	if v.Allowed {
		return ""
	}

	var msg string
	switch v.Scope {
	case chat.ScopeBlock:
		msg = "Chat is blocked for the whole class"
	case chat.ScopeMute:
		msg = "You are muted"
	default:
		return "Not signed in"
	}

	if v.Until != nil {
		msg += fmt.Sprintf(" until %s (%s)", v.Until.Local().Format("15:04"), humanize.RelTime(*v.Until, now, "ago", "from now"))
	} else {
		msg += " until further notice"
	}
	if v.Reason != "" {
		msg += ". Reason: " + v.Reason
	}
	return msg
}

// Resolver evaluates moderation records at read time. It never writes
// records back; expired records are simply reported as inactive.
type Resolver struct {
	records chat.ModerationStore
	admins  chat.AdminChecker
	now     func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(records chat.ModerationStore, admins chat.AdminChecker) *Resolver {
	return &Resolver{records: records, admins: admins, now: time.Now}
}

// WithClock overrides the time source.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// IsSendAllowed reports whether userID may send in classID right now.
//
// The class block is evaluated first and dominates a personal mute. Admins
// bypass the class block but are still subject to their own mute record.
func (r *Resolver) IsSendAllowed(ctx context.Context, classID, userID string) (Verdict, error) {
	if userID == "" || classID == "" {
		return Verdict{}, nil
	}

	now := r.now()

	block, err := r.records.GetBlock(ctx, classID)
	switch {
	case err == nil:
		if block.ActiveAt(now) {
			admin, err := r.admins.IsAdmin(ctx, userID)
			if err != nil {
				return Verdict{}, fmt.Errorf("check admin: %w", err)
			}
			if !admin {
				return Verdict{Scope: chat.ScopeBlock, Reason: block.Reason, Until: block.Until}, nil
			}
		}
	case errors.Is(err, chat.ErrNotFound):
	default:
		return Verdict{}, fmt.Errorf("get class block: %w", err)
	}

	mute, err := r.records.GetMute(ctx, classID, userID)
	switch {
	case err == nil:
		if mute.ActiveAt(now) {
			return Verdict{Scope: chat.ScopeMute, Reason: mute.Reason, Until: mute.Until}, nil
		}
	case errors.Is(err, chat.ErrNotFound):
	default:
		return Verdict{}, fmt.Errorf("get mute record: %w", err)
	}

	return Verdict{Allowed: true}, nil
}
