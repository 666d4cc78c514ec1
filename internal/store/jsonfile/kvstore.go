package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
)

// Entry is one key/value pair. Value holds arbitrary JSON.
type Entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decode unmarshals the entry value into v.
func (e Entry) Decode(v any) error {
	if err := json.Unmarshal(e.Value, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Key, err)
	}
	return nil
}

// KVFile is the root JSON structure stored on disk for KV data.
type KVFile struct {
	Entries map[string]Entry `json:"entries"`
}

// KVStore is a JSON file backed key/value store.
type KVStore struct {
	path string
	now  func() time.Time
	mu   sync.RWMutex
}

// NewKVStore creates a new JSON file KV store at the given path.
func NewKVStore(path string) *KVStore {
	return &KVStore{path: path, now: time.Now}
}

func (s *KVStore) withSharedLock(fn func() error) error {
	return withFileLock(s.path+".lock", syscall.LOCK_SH, fn)
}

func (s *KVStore) withExclusiveLock(fn func() error) error {
	return withFileLock(s.path+".lock", syscall.LOCK_EX, fn)
}

// Get returns an entry by key. Returns chat.ErrNotFound if not found.
func (s *KVStore) Get(ctx context.Context, key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		entry Entry
		found bool
	)
	err := s.withSharedLock(func() error {
		file, err := s.load()
		if err != nil {
			return err
		}
		entry, found = file.Entries[key]
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, chat.ErrNotFound
	}
	return entry, nil
}

// Set encodes value as JSON and creates or updates the entry.
func (s *KVStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withExclusiveLock(func() error {
		file, err := s.load()
		if err != nil {
			return err
		}

		now := s.now()
		entry, exists := file.Entries[key]
		if !exists {
			entry = Entry{Key: key, CreatedAt: now}
		}
		entry.Value = data
		entry.UpdatedAt = now

		file.Entries[key] = entry
		return writeJSON(s.path, file)
	})
}

// Delete removes an entry by key. Returns chat.ErrNotFound if not found.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withExclusiveLock(func() error {
		file, err := s.load()
		if err != nil {
			return err
		}

		if _, ok := file.Entries[key]; !ok {
			return chat.ErrNotFound
		}

		delete(file.Entries, key)
		return writeJSON(s.path, file)
	})
}

// List returns all entries whose key starts with prefix, ordered by key.
func (s *KVStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	err := s.withSharedLock(func() error {
		file, err := s.load()
		if err != nil {
			return err
		}

		for _, entry := range file.Entries {
			if strings.HasPrefix(entry.Key, prefix) {
				entries = append(entries, entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Key, b.Key) })
	return entries, nil
}

func (s *KVStore) load() (KVFile, error) {
	var file KVFile
	if _, err := readJSON(s.path, &file); err != nil {
		return KVFile{}, err
	}
	if file.Entries == nil {
		file.Entries = make(map[string]Entry)
	}
	return file, nil
}
