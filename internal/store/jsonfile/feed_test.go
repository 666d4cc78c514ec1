package jsonfile

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/rs/zerolog"
)

func nextEvent(t *testing.T, events <-chan chat.Event) chat.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("feed closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed event")
	}
	return chat.Event{}
}

func TestFeed_DeliversChangesAfterSubscribe(t *testing.T) {
	store := NewMsgStore(filepath.Join(t.TempDir(), "messages"))
	feed := NewFeed(store, zerolog.New(io.Discard)).WithInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _ = store.InsertMessage(ctx, newTestMessage(testKey, "before subscribe"))

	events, err := feed.Subscribe(ctx, testKey)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	msg, _ := store.InsertMessage(ctx, newTestMessage(testKey, "after subscribe"))
	_ = store.DeleteMessage(ctx, testKey, msg.ID)

	ev := nextEvent(t, events)
	if ev.Type != chat.EventInsert || ev.Record.Content != "after subscribe" {
		t.Errorf("first event = %+v, want insert of %q", ev, "after subscribe")
	}

	ev = nextEvent(t, events)
	if ev.Type != chat.EventDelete || ev.Record.ID != msg.ID {
		t.Errorf("second event = %+v, want delete of %s", ev, msg.ID)
	}
}

func TestFeed_IgnoresOtherChannels(t *testing.T) {
	store := NewMsgStore(filepath.Join(t.TempDir(), "messages"))
	feed := NewFeed(store, zerolog.New(io.Discard)).WithInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := feed.Subscribe(ctx, testKey)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	_, _ = store.InsertMessage(ctx, newTestMessage(chat.Key{ClassID: "class-1", ChannelID: "homework"}, "elsewhere"))
	_, _ = store.InsertMessage(ctx, newTestMessage(testKey, "here"))

	ev := nextEvent(t, events)
	if ev.Record.Content != "here" {
		t.Errorf("event content = %q, want %q", ev.Record.Content, "here")
	}
}

func TestFeed_ClosesOnCancel(t *testing.T) {
	store := NewMsgStore(filepath.Join(t.TempDir(), "messages"))
	feed := NewFeed(store, zerolog.New(io.Discard)).WithInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := feed.Subscribe(ctx, testKey)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected no events after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not close after cancel")
	}
}

func TestFeed_DisconnectsAfterRepeatedFailures(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "messages")
	store := NewMsgStore(dir)
	feed := NewFeed(store, zerolog.New(io.Discard)).
		WithInterval(10 * time.Millisecond).
		WithMaxFailures(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := feed.Subscribe(ctx, testKey)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Corrupt the channel file so every poll fails.
	if err := os.MkdirAll(filepath.Dir(store.channelPath(testKey)), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(store.channelPath(testKey), []byte("{invalid json"), 0o644); err != nil {
		t.Fatalf("Failed to write corrupted file: %v", err)
	}

	ev := nextEvent(t, events)
	if ev.Type != chat.EventDisconnected {
		t.Fatalf("event type = %q, want %q", ev.Type, chat.EventDisconnected)
	}
	if !errors.Is(ev.Err, chat.ErrTransportDisconnected) {
		t.Errorf("event error = %v, want ErrTransportDisconnected", ev.Err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("disconnect should be the last event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not close after disconnect")
	}
}
