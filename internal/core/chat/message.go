// Package chat defines the class chat domain types, collaborator interfaces,
// and error taxonomy shared by the rest of the application.
package chat

import (
	"strings"
	"time"
)

// MediaKind classifies an attached media object.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaKindFromContentType maps a MIME type to a MediaKind.
// Returns false for anything that is not image/* or video/*.
func MediaKindFromContentType(contentType string) (MediaKind, bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MediaImage, true
	case strings.HasPrefix(contentType, "video/"):
		return MediaVideo, true
	default:
		return "", false
	}
}

// Media is a reference to an uploaded object.
type Media struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// Author is the display identity attached to a message.
type Author struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Key identifies one channel inside one class.
type Key struct {
	ClassID   string `json:"class_id"`
	ChannelID string `json:"channel_id"`
}

func (k Key) String() string {
	return k.ClassID + "/" + k.ChannelID
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k.ClassID == "" && k.ChannelID == ""
}

// Message is a single chat message. Committed messages carry a server
// assigned ID; optimistic entries carry a temporary ID and Pending=true.
type Message struct {
	ID        string     `json:"id"`
	ClassID   string     `json:"class_id"`
	ChannelID string     `json:"channel_id"`
	Author    Author     `json:"author"`
	Content   string     `json:"content"`
	Media     *Media     `json:"media,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Pending   bool       `json:"pending,omitempty"`
}

// Key returns the channel key the message belongs to.
func (m Message) Key() Key {
	return Key{ClassID: m.ClassID, ChannelID: m.ChannelID}
}

// Before reports whether m sorts before other: creation time ascending,
// ties broken by ID.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// Compare is a three-way version of Before for use with slices.SortFunc.
func Compare(a, b Message) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	default:
		return 0
	}
}

// MediaURL returns the attached media URL or an empty string.
func (m Message) MediaURL() string {
	if m.Media == nil {
		return ""
	}
	return m.Media.URL
}

// Draft is the user's input for a send: text plus optional media.
type Draft struct {
	Content string `json:"content"`
	Media   *Media `json:"media,omitempty"`
}

// IsEmpty reports whether the draft has neither text nor media.
func (d Draft) IsEmpty() bool {
	return strings.TrimSpace(d.Content) == "" && d.Media == nil
}
