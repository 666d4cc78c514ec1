package chat

import (
	"context"
	"io"
	"time"
)

// AdminChecker answers the admin capability check.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// UserResolver looks up users by ID. Returns ErrNotFound if missing.
type UserResolver interface {
	GetUser(ctx context.Context, userID string) (User, error)
}

// Identity maps security codes to classes and names to users.
type Identity interface {
	AdminChecker
	UserResolver
	// ResolveClass returns the class whose security code matches.
	// Returns ErrClassNotFound if none does.
	ResolveClass(ctx context.Context, code string) (Class, error)
	// CreateUser registers a new user in the class.
	CreateUser(ctx context.Context, classID, name, avatar string) (User, error)
}

// Directory is the full identity store used by account management.
type Directory interface {
	Identity
	// CreateClass registers a class guarded by the given security code.
	CreateClass(ctx context.Context, name, code string) (Class, error)
	// ListUsers returns every user of a class.
	ListUsers(ctx context.Context, classID string) ([]User, error)
	// SaveUser updates an existing user. Returns ErrNotFound if missing.
	SaveUser(ctx context.Context, user User) error
}

// NewMessage is the input of a durable insert.
type NewMessage struct {
	ClassID   string
	ChannelID string
	Author    Author
	Content   string
	Media     *Media
}

// MessageStore is the durable message store.
type MessageStore interface {
	// ListMessages returns the channel's messages ordered by creation time.
	ListMessages(ctx context.Context, key Key) ([]Message, error)
	// InsertMessage commits a message and returns the server copy with its
	// assigned ID and timestamp.
	InsertMessage(ctx context.Context, msg NewMessage) (Message, error)
	// UpdateMessage replaces the content of a committed message.
	UpdateMessage(ctx context.Context, key Key, id, content string) (Message, error)
	// DeleteMessage removes a committed message. Returns ErrNotFound if missing.
	DeleteMessage(ctx context.Context, key Key, id string) error
}

// EventType is the kind of change carried by a live feed event.
type EventType string

const (
	EventInsert       EventType = "insert"
	EventUpdate       EventType = "update"
	EventDelete       EventType = "delete"
	EventDisconnected EventType = "disconnected"
)

// Record is the raw row a live feed delivers. It carries the author's user
// id only; display details must be resolved separately.
type Record struct {
	ID        string     `json:"id"`
	ClassID   string     `json:"class_id"`
	ChannelID string     `json:"channel_id"`
	UserID    string     `json:"user_id"`
	Content   string     `json:"content"`
	MediaURL  string     `json:"media_url,omitempty"`
	MediaType string     `json:"media_type,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}

// RecordOf strips a message down to its raw row.
func RecordOf(m Message) Record {
	r := Record{
		ID:        m.ID,
		ClassID:   m.ClassID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.UserID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
	}
	if m.Media != nil {
		r.MediaURL = m.Media.URL
		r.MediaType = string(m.Media.Kind)
	}
	return r
}

// Message builds a complete message from the raw row and its author.
func (r Record) Message(author Author) Message {
	m := Message{
		ID:        r.ID,
		ClassID:   r.ClassID,
		ChannelID: r.ChannelID,
		Author:    author,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
		EditedAt:  r.EditedAt,
	}
	if r.MediaURL != "" {
		m.Media = &Media{URL: r.MediaURL, Kind: MediaKind(r.MediaType)}
	}
	return m
}

// Event is one change notification from the live feed. Disconnected events
// carry the transport error and are always the last event delivered.
type Event struct {
	Type   EventType
	Record Record
	Err    error
}

// Feed is the live update transport.
type Feed interface {
	// Subscribe opens a feed filtered to one channel. The returned channel
	// is closed when ctx is cancelled or after a Disconnected event.
	Subscribe(ctx context.Context, key Key) (<-chan Event, error)
}

// ChannelCatalog stores the channels of each class.
type ChannelCatalog interface {
	ListChannels(ctx context.Context, classID string) ([]Channel, error)
	// InsertChannel returns ErrDuplicateChannelID if the id is taken.
	InsertChannel(ctx context.Context, ch Channel) error
	// DeleteChannel returns ErrNotFound if the channel does not exist.
	DeleteChannel(ctx context.Context, classID, channelID string) error
}

// ModerationStore persists mute and block records. Getters return
// ErrNotFound when no record exists.
type ModerationStore interface {
	GetMute(ctx context.Context, classID, userID string) (MuteRecord, error)
	SetMute(ctx context.Context, rec MuteRecord) error
	ClearMute(ctx context.Context, classID, userID string) error
	ListMutes(ctx context.Context, classID string) ([]MuteRecord, error)
	GetBlock(ctx context.Context, classID string) (ClassBlock, error)
	SetBlock(ctx context.Context, block ClassBlock) error
	ClearBlock(ctx context.Context, classID string) error
}

// MediaStorage stores uploaded files and hands back a public reference.
type MediaStorage interface {
	Upload(ctx context.Context, key Key, filename string, r io.Reader) (Media, error)
}

// AuditEntry records one admin action.
type AuditEntry struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditLog persists admin actions.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
	// List returns the newest entries first. A limit of 0 returns all.
	List(ctx context.Context, classID string, limit int) ([]AuditEntry, error)
}
