// Package timeline holds the ordered, deduplicated message list of one
// channel and merges history, live changes, and optimistic sends into it.
package timeline

import (
	"slices"
	"sync"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
)

// DefaultMatchWindow is how far apart an optimistic entry and its server echo
// may be timestamped and still be treated as the same message.
const DefaultMatchWindow = 10 * time.Second

// Outcome is the result of a durable send, used to resolve an optimistic entry.
type Outcome struct {
	confirmed *chat.Message
}

// Confirmed returns an outcome carrying the committed server copy.
func Confirmed(msg chat.Message) Outcome {
	return Outcome{confirmed: &msg}
}

// Failed returns an outcome for a send whose durable write failed.
func Failed() Outcome {
	return Outcome{}
}

// Ok reports whether the outcome carries a committed message.
func (o Outcome) Ok() bool {
	return o.confirmed != nil
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithMatchWindow sets the optimistic echo matching window.
func WithMatchWindow(d time.Duration) Option {
	return func(t *Timeline) {
		if d > 0 {
			t.window = d
		}
	}
}

// Timeline is the message list for one channel. It is safe for concurrent use;
// every mutation goes through one of the Apply/Resolve/Load entry points.
type Timeline struct {
	key    chat.Key
	window time.Duration

	mu      sync.RWMutex
	entries []chat.Message
	// superseded maps temporary IDs to the committed ID that replaced them.
	superseded map[string]string
	// deleted and edits record live changes since the last history load so
	// a history snapshot read before them cannot undo them.
	deleted map[string]struct{}
	edits   map[string]chat.Message
}

// New creates an empty Timeline for key.
func New(key chat.Key, opts ...Option) *Timeline {
	t := &Timeline{
		key:        key,
		window:     DefaultMatchWindow,
		superseded: make(map[string]string),
		deleted:    make(map[string]struct{}),
		edits:      make(map[string]chat.Message),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Key returns the channel this timeline belongs to.
func (t *Timeline) Key() chat.Key {
	return t.key
}

// Messages returns a copy of the current list in display order.
func (t *Timeline) Messages() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.entries)
}

// Len returns the number of entries, pending ones included.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// LoadHistory replaces the list with history. Pending entries survive, as do
// live inserts newer than the last history message that arrived while the
// history request was in flight. Deletes and edits received since the
// previous load are applied on top of history.
func (t *Timeline) LoadHistory(history []chat.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	defer func() {
		clear(t.deleted)
		clear(t.edits)
	}()

	next := make([]chat.Message, 0, len(history)+len(t.entries))
	seen := make(map[string]struct{}, len(history))
	var newest time.Time

	for _, m := range history {
		if m.Key() != t.key {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		if _, gone := t.deleted[m.ID]; gone {
			continue
		}
		if edit, ok := t.edits[m.ID]; ok && newerEdit(edit, m) {
			applyEdit(&m, edit)
		}
		m.Pending = false
		next = append(next, m)
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}

	for _, m := range t.entries {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		if m.Pending || m.CreatedAt.After(newest) {
			next = append(next, m)
		}
	}

	slices.SortStableFunc(next, chat.Compare)
	t.entries = next
}

// ApplyRemoteInsert adds a committed message from the live feed. It is a
// no-op if the ID is already present. A pending entry from the same author
// with the same content and a timestamp inside the match window is replaced
// by the committed copy. Reports whether the list changed.
func (t *Timeline) ApplyRemoteInsert(msg chat.Message) bool {
	if msg.Key() != t.key || msg.ID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.indexOf(msg.ID) >= 0 {
		return false
	}

	msg.Pending = false
	if i := t.matchPending(msg); i >= 0 {
		t.superseded[t.entries[i].ID] = msg.ID
		t.entries[i] = msg
	} else {
		t.entries = append(t.entries, msg)
	}
	slices.SortStableFunc(t.entries, chat.Compare)
	return true
}

// ApplyRemoteUpdate replaces the content of a committed message. Unknown IDs
// are ignored.
func (t *Timeline) ApplyRemoteUpdate(msg chat.Message) bool {
	if msg.Key() != t.key {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.edits[msg.ID]; !ok || newerEdit(msg, prev) {
		t.edits[msg.ID] = msg
	}

	i := t.indexOf(msg.ID)
	if i < 0 {
		return false
	}

	applyEdit(&t.entries[i], msg)
	return true
}

// newerEdit reports whether edit is at least as recent as the edit state of cur.
func newerEdit(edit, cur chat.Message) bool {
	if cur.EditedAt == nil {
		return true
	}
	return edit.EditedAt != nil && !edit.EditedAt.Before(*cur.EditedAt)
}

func applyEdit(cur *chat.Message, edit chat.Message) {
	cur.Content = edit.Content
	cur.Media = edit.Media
	cur.EditedAt = edit.EditedAt
	if edit.Author.Name != "" {
		cur.Author = edit.Author
	}
}

// ApplyRemoteDelete removes a committed message. Unknown IDs are ignored.
func (t *Timeline) ApplyRemoteDelete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.deleted[id] = struct{}{}
	delete(t.edits, id)

	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	t.entries = slices.Delete(t.entries, i, i+1)
	return true
}

// ApplyOptimistic registers a locally sent message under its temporary ID.
func (t *Timeline) ApplyOptimistic(entry chat.Message) bool {
	if entry.Key() != t.key || entry.ID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.indexOf(entry.ID) >= 0 {
		return false
	}

	entry.Pending = true
	t.entries = append(t.entries, entry)
	slices.SortStableFunc(t.entries, chat.Compare)
	return true
}

// ResolveOptimistic settles the pending entry tempID. A confirmed outcome
// replaces it with the server copy and re-sorts by the server timestamp; a
// failed outcome removes it. If the live feed already delivered the committed
// copy, the entry is dropped so the message appears exactly once.
func (t *Timeline) ResolveOptimistic(tempID string, outcome Outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if echoID, done := t.superseded[tempID]; done {
		delete(t.superseded, tempID)
		// the entry was taken over by the echo of an identical send; keep
		// this send's own copy unless it is already listed or deleted
		if !outcome.Ok() || outcome.confirmed.ID == echoID {
			return false
		}
		return t.insertConfirmed(*outcome.confirmed)
	}

	i := t.indexOf(tempID)
	if i < 0 || !t.entries[i].Pending {
		return false
	}

	if !outcome.Ok() {
		t.entries = slices.Delete(t.entries, i, i+1)
		return true
	}

	confirmed := *outcome.confirmed
	confirmed.Pending = false
	if t.indexOf(confirmed.ID) >= 0 {
		t.entries = slices.Delete(t.entries, i, i+1)
		return true
	}

	t.entries[i] = confirmed
	slices.SortStableFunc(t.entries, chat.Compare)
	return true
}

func (t *Timeline) insertConfirmed(msg chat.Message) bool {
	if msg.Key() != t.key || t.indexOf(msg.ID) >= 0 {
		return false
	}
	if _, gone := t.deleted[msg.ID]; gone {
		return false
	}
	msg.Pending = false
	t.entries = append(t.entries, msg)
	slices.SortStableFunc(t.entries, chat.Compare)
	return true
}

func (t *Timeline) indexOf(id string) int {
	return slices.IndexFunc(t.entries, func(m chat.Message) bool {
		return m.ID == id
	})
}

// matchPending returns the oldest pending entry that msg is the echo of, or -1.
func (t *Timeline) matchPending(msg chat.Message) int {
	for i, e := range t.entries {
		if !e.Pending {
			continue
		}
		if e.Author.UserID != msg.Author.UserID || e.Content != msg.Content || e.MediaURL() != msg.MediaURL() {
			continue
		}
		if absDuration(e.CreatedAt.Sub(msg.CreatedAt)) <= t.window {
			return i
		}
	}
	return -1
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
