package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
)

func TestKVStore_GetNotFound(t *testing.T) {
	store := NewKVStore(filepath.Join(t.TempDir(), "kv.json"))

	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestKVStore_SetAndGet(t *testing.T) {
	store := NewKVStore(filepath.Join(t.TempDir(), "kv.json"))
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := store.Set(ctx, "key", payload{Name: "a", Count: 2}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	var got payload
	if err := entry.Decode(&got); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Name != "a" || got.Count != 2 {
		t.Errorf("Decode = %+v, want {a 2}", got)
	}
	if entry.CreatedAt.IsZero() || entry.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestKVStore_Update(t *testing.T) {
	store := NewKVStore(filepath.Join(t.TempDir(), "kv.json"))
	store.now = steppingClock(time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_ = store.Set(ctx, "key", "value1")
	entry1, _ := store.Get(ctx, "key")

	_ = store.Set(ctx, "key", "value2")
	entry2, _ := store.Get(ctx, "key")

	var value string
	_ = entry2.Decode(&value)
	if value != "value2" {
		t.Errorf("Value = %q, want %q", value, "value2")
	}
	if !entry2.CreatedAt.Equal(entry1.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", entry1.CreatedAt, entry2.CreatedAt)
	}
	if !entry2.UpdatedAt.After(entry1.UpdatedAt) {
		t.Errorf("UpdatedAt should be after original: %v <= %v", entry2.UpdatedAt, entry1.UpdatedAt)
	}
}

func TestKVStore_List(t *testing.T) {
	store := NewKVStore(filepath.Join(t.TempDir(), "kv.json"))
	ctx := context.Background()

	_ = store.Set(ctx, "mute/c1/b", 1)
	_ = store.Set(ctx, "mute/c1/a", 2)
	_ = store.Set(ctx, "block/c1", 3)

	entries, err := store.List(ctx, "mute/c1/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	if entries[0].Key != "mute/c1/a" {
		t.Errorf("entries should be ordered by key, first = %q", entries[0].Key)
	}

	all, _ := store.List(ctx, "")
	if len(all) != 3 {
		t.Errorf("List all returned %d entries, want 3", len(all))
	}
}

func TestKVStore_Delete(t *testing.T) {
	store := NewKVStore(filepath.Join(t.TempDir(), "kv.json"))
	ctx := context.Background()

	_ = store.Set(ctx, "key", "value")

	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, "key"); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}

	if err := store.Delete(ctx, "key"); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("Delete missing error = %v, want ErrNotFound", err)
	}
}

func TestKVStore_ConcurrentAccess(t *testing.T) {
	store := NewKVStore(filepath.Join(t.TempDir(), "kv.json"))
	ctx := context.Background()

	const goroutines = 10
	const iterations = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := range goroutines {
		go func(id int) {
			defer wg.Done()
			for j := range iterations {
				key := fmt.Sprintf("key-%d-%d", id, j)
				if err := store.Set(ctx, key, "value"); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
				if _, err := store.Get(ctx, key); err != nil {
					t.Errorf("Get failed: %v", err)
					return
				}
			}
		}(i)
	}

	wg.Wait()

	entries, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("Final List failed: %v", err)
	}
	if len(entries) != goroutines*iterations {
		t.Errorf("Expected %d entries, got %d", goroutines*iterations, len(entries))
	}
}

func TestKVStore_CorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")

	if err := os.WriteFile(path, []byte("{invalid json"), 0o644); err != nil {
		t.Fatalf("Failed to write corrupted file: %v", err)
	}

	store := NewKVStore(path)
	ctx := context.Background()

	if _, err := store.Get(ctx, "any"); err == nil {
		t.Error("Expected error for corrupted JSON, got nil")
	}
	if err := store.Set(ctx, "key", "value"); err == nil {
		t.Error("Expected error for Set with corrupted file, got nil")
	}
}
