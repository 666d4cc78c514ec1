package jsonfile

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
)

const (
	defaultMaxAuditEntries = 5000
	auditFilename          = "audit.jsonl"
)

// AuditStore implements chat.AuditLog using an append-only JSONL file. The
// oldest entries are dropped once the retention limit is reached.
type AuditStore struct {
	dir        string
	maxEntries int
	mu         sync.Mutex
}

// NewAuditStore creates a new audit store in dir.
func NewAuditStore(dir string) *AuditStore {
	return &AuditStore{
		dir:        dir,
		maxEntries: defaultMaxAuditEntries,
	}
}

// WithMaxEntries sets the maximum number of entries to retain.
func (s *AuditStore) WithMaxEntries(max int) *AuditStore {
	if max > 0 {
		s.maxEntries = max
	}
	return s
}

func (s *AuditStore) filePath() string {
	return filepath.Join(s.dir, auditFilename)
}

// Record appends an entry, filling in ID and Timestamp when unset.
func (s *AuditStore) Record(ctx context.Context, entry chat.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = generateID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return withFileLock(s.filePath()+".lock", syscall.LOCK_EX, func() error {
		entries, err := s.readUnsafe()
		if err != nil {
			return err
		}

		if len(entries) < s.maxEntries {
			return s.appendUnsafe(entry)
		}

		entries = append(entries, entry)
		return s.writeUnsafe(entries[len(entries)-s.maxEntries:])
	})
}

// List returns the entries of classID, newest first. A limit of 0 returns all.
func (s *AuditStore) List(ctx context.Context, classID string, limit int) ([]chat.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []chat.AuditEntry
	err := withFileLock(s.filePath()+".lock", syscall.LOCK_SH, func() error {
		entries, err := s.readUnsafe()
		if err != nil {
			return err
		}

		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].ClassID != classID {
				continue
			}
			result = append(result, entries[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
		return nil
	})
	return result, err
}

// readUnsafe reads every entry from the file. Malformed lines are skipped.
// Caller must hold the lock.
func (s *AuditStore) readUnsafe() ([]chat.AuditEntry, error) {
	f, err := os.Open(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var entries []chat.AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry chat.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit file: %w", err)
	}

	return entries, nil
}

// appendUnsafe writes one line to the end of the file.
// Caller must hold the lock.
func (s *AuditStore) appendUnsafe(entry chat.AuditEntry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}

	f, err := os.OpenFile(s.filePath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}

	if err := json.NewEncoder(f).Encode(entry); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("write audit entry: %w", err)
	}
	return f.Close()
}

// writeUnsafe rewrites the whole file atomically.
// Caller must hold the lock.
func (s *AuditStore) writeUnsafe(entries []chat.AuditEntry) error {
	tmpPath := s.filePath() + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			f.Close() //nolint:errcheck
			_ = os.Remove(tmpPath)
			return fmt.Errorf("write audit entry: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath()); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
