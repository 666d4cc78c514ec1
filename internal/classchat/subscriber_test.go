package classchat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu       sync.Mutex
	inserted []chat.Message
	deleted  []string
	discErr  error
}

func (c *collector) handlers() Handlers {
	return Handlers{
		OnInsert: func(m chat.Message) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.inserted = append(c.inserted, m)
		},
		OnDelete: func(id string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.deleted = append(c.deleted, id)
		},
		OnDisconnect: func(err error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.discErr = err
		},
	}
}

func (c *collector) insertedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return messageIDs(c.inserted)
}

func TestSubscriber_DeliversInOrder(t *testing.T) {
	h := newHarness(t)
	c := &collector{}

	sub, err := h.svc.Follow(context.Background(), h.key("general"), c.handlers())
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, h.key("general"), sub.Key())

	for _, id := range []string{"m1", "m2", "m3"} {
		h.feed.emit(h.key("general"), h.record(id, "general", h.student.User.ID, id))
	}
	h.feed.emit(h.key("general"), chat.Event{Type: chat.EventDelete, Record: chat.Record{ID: "m2"}})

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.deleted) == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"m1", "m2", "m3"}, c.insertedIDs())
}

func TestSubscriber_CachesAuthors(t *testing.T) {
	h := newHarness(t)
	c := &collector{}

	sub, err := h.svc.Follow(context.Background(), h.key("general"), c.handlers())
	require.NoError(t, err)
	defer sub.Close()

	h.feed.emit(h.key("general"), h.record("m1", "general", h.student.User.ID, "one"))
	require.Eventually(t, func() bool { return len(c.insertedIDs()) == 1 }, waitFor, 5*time.Millisecond)

	// Directory becomes unavailable; cached authors still resolve, new ones
	// are dropped.
	h.dir.mu.Lock()
	h.dir.getErr = errors.New("directory offline")
	h.dir.mu.Unlock()

	h.feed.emit(h.key("general"), h.record("m2", "general", h.admin.User.ID, "dropped"))
	h.feed.emit(h.key("general"), h.record("m3", "general", h.student.User.ID, "two"))

	require.Eventually(t, func() bool { return len(c.insertedIDs()) == 2 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"m1", "m3"}, c.insertedIDs())

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, "Emma Wilson", c.inserted[1].Author.Name)
}

func TestSubscriber_DisconnectEndsSubscription(t *testing.T) {
	h := newHarness(t)
	c := &collector{}

	sub, err := h.svc.Follow(context.Background(), h.key("general"), c.handlers())
	require.NoError(t, err)

	h.feed.emit(h.key("general"), chat.Event{Type: chat.EventDisconnected})

	select {
	case <-sub.Done():
	case <-time.After(waitFor):
		t.Fatal("subscription did not end after disconnect")
	}

	c.mu.Lock()
	assert.ErrorIs(t, c.discErr, chat.ErrTransportDisconnected)
	c.mu.Unlock()

	sub.Close()
	sub.Close()
}

func TestSubscriber_CloseStopsDelivery(t *testing.T) {
	h := newHarness(t)
	c := &collector{}

	sub, err := h.svc.Follow(context.Background(), h.key("general"), c.handlers())
	require.NoError(t, err)
	sub.Close()

	h.feed.emit(h.key("general"), h.record("m1", "general", h.student.User.ID, "late"))
	assert.Empty(t, c.insertedIDs())
	assert.Equal(t, 0, h.feed.active())
}

func TestSubscriber_OpenError(t *testing.T) {
	h := newHarness(t)
	h.feed.err = errors.New("refused")

	_, err := h.svc.Follow(context.Background(), h.key("general"), Handlers{})
	assert.Error(t, err)
}
