package chat

import (
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/gomoji"
)

// Class is the top-level tenant: a cohort with its own channels and users.
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CodeHash  string    `json:"code_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a member of a class.
type User struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	Admin     bool      `json:"admin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Author returns the display identity used on messages.
func (u User) Author() Author {
	return Author{UserID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// Session is the explicit per-login context handed to the send pipeline
// and moderation checks.
type Session struct {
	ClassID string `json:"class_id"`
	User    User   `json:"user"`
}

// Authenticated reports whether the session carries a user.
func (s Session) Authenticated() bool {
	return s.User.ID != "" && s.ClassID != ""
}

// Author returns the session user's display identity.
func (s Session) Author() Author {
	return s.User.Author()
}

// ValidateAvatar checks that the glyph is exactly one emoji.
// An empty avatar is allowed and falls back to initials on display.
func ValidateAvatar(avatar string) error {
	if avatar == "" {
		return nil
	}

	emojis := gomoji.CollectAll(avatar)
	if len(emojis) != 1 || emojis[0].Character != avatar {
		return ErrInvalidAvatar
	}
	return nil
}

// Initials returns the display fallback for users without an avatar glyph.
func Initials(name string) string {
	var initials []rune
	for _, part := range strings.Fields(name) {
		initials = append(initials, unicode.ToUpper([]rune(part)[0]))
		if len(initials) == 2 {
			break
		}
	}
	if len(initials) == 0 {
		return "?"
	}
	return string(initials)
}

// Glyph returns the avatar or the initials fallback.
func (a Author) Glyph() string {
	if a.Avatar != "" {
		return a.Avatar
	}
	return Initials(a.Name)
}
