package jsonfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/classchat/internal/core/chat"
)

const (
	defaultMaxMessages = 1000
	defaultMaxChanges  = 500
)

// Change is one entry of a channel's change log. Seq increases by one per
// change and is never reused.
type Change struct {
	Seq    int64          `json:"seq"`
	Type   chat.EventType `json:"type"`
	Record chat.Record    `json:"record"`
	At     time.Time      `json:"at"`
}

// ChannelFile is the JSON structure stored on disk per channel.
type ChannelFile struct {
	ClassID   string         `json:"class_id"`
	ChannelID string         `json:"channel_id"`
	Messages  []chat.Message `json:"messages"`
	Changes   []Change       `json:"changes"`
	Seq       int64          `json:"seq"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (f *ChannelFile) record(typ chat.EventType, rec chat.Record, now time.Time, maxChanges int) {
	f.Seq++
	f.Changes = append(f.Changes, Change{Seq: f.Seq, Type: typ, Record: rec, At: now})
	if len(f.Changes) > maxChanges {
		f.Changes = f.Changes[len(f.Changes)-maxChanges:]
	}
	f.UpdatedAt = now
}

// MsgStore implements chat.MessageStore using one JSON file per channel.
// Each file also carries a bounded change log that Feed tails.
type MsgStore struct {
	dir         string
	maxMessages int
	maxChanges  int
	now         func() time.Time
	mu          sync.RWMutex
}

// NewMsgStore creates a new message store rooted at dir.
func NewMsgStore(dir string) *MsgStore {
	return &MsgStore{
		dir:         dir,
		maxMessages: defaultMaxMessages,
		maxChanges:  defaultMaxChanges,
		now:         time.Now,
	}
}

// WithMaxMessages sets the maximum number of messages to retain per channel.
func (s *MsgStore) WithMaxMessages(max int) *MsgStore {
	if max > 0 {
		s.maxMessages = max
	}
	return s
}

// WithClock overrides the time source used for server timestamps.
func (s *MsgStore) WithClock(now func() time.Time) *MsgStore {
	s.now = now
	return s
}

func (s *MsgStore) classDir(classID string) string {
	return filepath.Join(s.dir, safeName(classID))
}

func (s *MsgStore) channelPath(key chat.Key) string {
	return filepath.Join(s.classDir(key.ClassID), safeName(key.ChannelID)+".json")
}

func (s *MsgStore) withSharedLock(key chat.Key, fn func() error) error {
	return withFileLock(s.channelPath(key)+".lock", syscall.LOCK_SH, fn)
}

func (s *MsgStore) withExclusiveLock(key chat.Key, fn func() error) error {
	return withFileLock(s.channelPath(key)+".lock", syscall.LOCK_EX, fn)
}

// ListMessages returns the channel's messages ordered by creation time.
func (s *MsgStore) ListMessages(ctx context.Context, key chat.Key) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var msgs []chat.Message
	err := s.withSharedLock(key, func() error {
		file, err := s.load(key)
		if err != nil {
			return err
		}
		msgs = file.Messages
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(msgs, chat.Compare)
	return msgs, nil
}

// InsertMessage commits a message, assigning its ID and timestamp.
func (s *MsgStore) InsertMessage(ctx context.Context, in chat.NewMessage) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := chat.Key{ClassID: in.ClassID, ChannelID: in.ChannelID}
	msg := chat.Message{
		ID:        generateID(),
		ClassID:   in.ClassID,
		ChannelID: in.ChannelID,
		Author:    in.Author,
		Content:   in.Content,
		Media:     in.Media,
	}

	err := s.withExclusiveLock(key, func() error {
		file, err := s.load(key)
		if err != nil {
			return err
		}

		now := s.now()
		msg.CreatedAt = now
		file.Messages = append(file.Messages, msg)
		if len(file.Messages) > s.maxMessages {
			file.Messages = file.Messages[len(file.Messages)-s.maxMessages:]
		}
		file.record(chat.EventInsert, chat.RecordOf(msg), now, s.maxChanges)

		return writeJSON(s.channelPath(key), file)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// UpdateMessage replaces the content of a message and stamps EditedAt.
func (s *MsgStore) UpdateMessage(ctx context.Context, key chat.Key, id, content string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated chat.Message
	err := s.withExclusiveLock(key, func() error {
		file, err := s.load(key)
		if err != nil {
			return err
		}

		i := slices.IndexFunc(file.Messages, func(m chat.Message) bool { return m.ID == id })
		if i < 0 {
			return chat.ErrNotFound
		}

		now := s.now()
		file.Messages[i].Content = content
		file.Messages[i].EditedAt = &now
		updated = file.Messages[i]
		file.record(chat.EventUpdate, chat.RecordOf(updated), now, s.maxChanges)

		return writeJSON(s.channelPath(key), file)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return updated, nil
}

// DeleteMessage removes a message. Returns chat.ErrNotFound if missing.
func (s *MsgStore) DeleteMessage(ctx context.Context, key chat.Key, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withExclusiveLock(key, func() error {
		file, err := s.load(key)
		if err != nil {
			return err
		}

		i := slices.IndexFunc(file.Messages, func(m chat.Message) bool { return m.ID == id })
		if i < 0 {
			return chat.ErrNotFound
		}

		file.Messages = slices.Delete(file.Messages, i, i+1)
		file.record(chat.EventDelete, chat.Record{ID: id, ClassID: key.ClassID, ChannelID: key.ChannelID}, s.now(), s.maxChanges)

		return writeJSON(s.channelPath(key), file)
	})
}

// Cursor returns the sequence number of the channel's latest change.
func (s *MsgStore) Cursor(ctx context.Context, key chat.Key) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var seq int64
	err := s.withSharedLock(key, func() error {
		file, err := s.load(key)
		if err != nil {
			return err
		}
		seq = file.Seq
		return nil
	})
	return seq, err
}

// ChangesSince returns the changes after seq, oldest first, and the new
// cursor. gap is true when changes after seq were already trimmed from the
// log.
func (s *MsgStore) ChangesSince(ctx context.Context, key chat.Key, seq int64) (changes []Change, cursor int64, gap bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor = seq
	err = s.withSharedLock(key, func() error {
		file, err := s.load(key)
		if err != nil {
			return err
		}

		for _, c := range file.Changes {
			if c.Seq > seq {
				changes = append(changes, c)
			}
		}
		if len(changes) > 0 && changes[0].Seq > seq+1 {
			gap = true
		}
		if file.Seq > cursor {
			cursor = file.Seq
		}
		return nil
	})
	return changes, cursor, gap, err
}

// Channels returns the ids of channels in classID that have a message file.
func (s *MsgStore) Channels(ctx context.Context, classID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channelsUnsafe(classID)
}

func (s *MsgStore) channelsUnsafe(classID string) ([]string, error) {
	entries, err := os.ReadDir(s.classDir(classID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read class directory: %w", err)
	}

	var channels []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		var file ChannelFile
		ok, err := readJSON(filepath.Join(s.classDir(classID), name), &file)
		if err != nil {
			return nil, err
		}
		if ok {
			channels = append(channels, file.ChannelID)
		}
	}

	slices.Sort(channels)
	return channels, nil
}

// ArchiveChannel moves the message file of key aside so a channel created
// later under the same id starts empty. The archived file is kept next to the
// live ones as "<channel>.json.<unix>.archived". Archiving a channel without
// messages is not an error.
func (s *MsgStore) ArchiveChannel(ctx context.Context, key chat.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withExclusiveLock(key, func() error {
		src := s.channelPath(key)
		dst := fmt.Sprintf("%s.%d.archived", src, s.now().UnixNano())
		if err := os.Rename(src, dst); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("archive channel %s: %w", key, err)
		}
		return nil
	})
}

// Prune removes messages created before the cutoff from every channel of
// classID whose id matches the doublestar pattern. Each removal is recorded
// as a delete change. Returns the number of messages removed.
func (s *MsgStore) Prune(ctx context.Context, classID, pattern string, before time.Time) (int, error) {
	if !doublestar.ValidatePattern(pattern) {
		return 0, fmt.Errorf("invalid channel pattern %q", pattern)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	channels, err := s.channelsUnsafe(classID)
	if err != nil {
		return 0, err
	}

	var removed int
	for _, channelID := range channels {
		if ok, _ := doublestar.Match(pattern, channelID); !ok {
			continue
		}

		key := chat.Key{ClassID: classID, ChannelID: channelID}
		err := s.withExclusiveLock(key, func() error {
			file, err := s.load(key)
			if err != nil {
				return err
			}

			now := s.now()
			kept := file.Messages[:0]
			for _, m := range file.Messages {
				if m.CreatedAt.Before(before) {
					file.record(chat.EventDelete, chat.Record{ID: m.ID, ClassID: classID, ChannelID: channelID}, now, s.maxChanges)
					removed++
					continue
				}
				kept = append(kept, m)
			}

			if len(kept) == len(file.Messages) {
				return nil
			}
			file.Messages = kept
			return writeJSON(s.channelPath(key), file)
		})
		if err != nil {
			return removed, err
		}
	}

	return removed, nil
}

// load reads a channel file from disk.
// Returns an empty channel if the file doesn't exist.
func (s *MsgStore) load(key chat.Key) (ChannelFile, error) {
	file := ChannelFile{ClassID: key.ClassID, ChannelID: key.ChannelID}
	if _, err := readJSON(s.channelPath(key), &file); err != nil {
		return ChannelFile{}, err
	}
	return file, nil
}
