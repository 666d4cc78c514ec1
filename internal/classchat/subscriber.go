package classchat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/rs/zerolog"
)

// Handlers receive the changes of one subscription. They are invoked from
// the subscription goroutine, one at a time, in feed order. Nil handlers are
// skipped.
type Handlers struct {
	OnInsert     func(chat.Message)
	OnUpdate     func(chat.Message)
	OnDelete     func(id string)
	OnDisconnect func(err error)
}

// Subscription is an open live feed bound to one channel. It is owned by
// whoever opened it and must be closed when that owner moves on.
type Subscription struct {
	key    chat.Key
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Key returns the channel the subscription is bound to.
func (s *Subscription) Key() chat.Key {
	return s.key
}

// Done is closed once the subscription goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops the subscription and waits for its goroutine to exit. No
// handler runs after Close returns. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
	<-s.done
}

// Subscriber turns raw feed records into complete messages.
type Subscriber struct {
	feed    chat.Feed
	authors *authorCache
	log     zerolog.Logger
}

// NewSubscriber creates a Subscriber.
func NewSubscriber(feed chat.Feed, users chat.UserResolver, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		feed:    feed,
		authors: newAuthorCache(users),
		log:     log,
	}
}

// Open subscribes to key and starts delivering changes to h. The returned
// handle stays live until Close is called, ctx is cancelled, or the transport
// disconnects. Disconnects are reported once through OnDisconnect and are not
// retried.
func (s *Subscriber) Open(ctx context.Context, key chat.Key, h Handlers) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	events, err := s.feed.Subscribe(ctx, key)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", key, err)
	}

	sub := &Subscription{
		key:    key,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	log := s.log.With().Str("class_id", key.ClassID).Str("channel_id", key.ChannelID).Logger()
	log.Debug().Msg("subscription opened")

	go func() {
		defer close(sub.done)
		defer cancel()

		for ev := range events {
			if ctx.Err() != nil {
				return
			}
			if !s.dispatch(ctx, log, ev, h) {
				return
			}
		}
		log.Debug().Msg("subscription closed")
	}()

	return sub, nil
}

// dispatch handles one event. Returns false when the subscription is over.
func (s *Subscriber) dispatch(ctx context.Context, log zerolog.Logger, ev chat.Event, h Handlers) bool {
	switch ev.Type {
	case chat.EventInsert:
		msg, err := s.complete(ctx, ev.Record)
		if err != nil {
			log.Warn().Err(err).Str("message_id", ev.Record.ID).Str("user_id", ev.Record.UserID).Msg("dropping live insert")
			return true
		}
		if h.OnInsert != nil {
			h.OnInsert(msg)
		}

	case chat.EventUpdate:
		msg, err := s.complete(ctx, ev.Record)
		if err != nil {
			// Keep whatever author the view already shows.
			log.Debug().Err(err).Str("message_id", ev.Record.ID).Msg("applying update without author details")
			msg = ev.Record.Message(chat.Author{UserID: ev.Record.UserID})
		}
		if h.OnUpdate != nil {
			h.OnUpdate(msg)
		}

	case chat.EventDelete:
		if h.OnDelete != nil {
			h.OnDelete(ev.Record.ID)
		}

	case chat.EventDisconnected:
		err := ev.Err
		if err == nil {
			err = chat.ErrTransportDisconnected
		} else if !errors.Is(err, chat.ErrTransportDisconnected) {
			err = fmt.Errorf("%w: %w", chat.ErrTransportDisconnected, err)
		}
		log.Warn().Err(err).Msg("live feed disconnected")
		if h.OnDisconnect != nil {
			h.OnDisconnect(err)
		}
		return false

	default:
		log.Debug().Str("type", string(ev.Type)).Msg("ignoring unknown event type")
	}
	return true
}

func (s *Subscriber) complete(ctx context.Context, rec chat.Record) (chat.Message, error) {
	author, err := s.authors.resolve(ctx, rec.UserID)
	if err != nil {
		return chat.Message{}, err
	}
	return rec.Message(author), nil
}

// authorCache memoizes display details per user ID for the lifetime of the
// subscriber.
type authorCache struct {
	users chat.UserResolver

	mu      sync.Mutex
	entries map[string]chat.Author
}

func newAuthorCache(users chat.UserResolver) *authorCache {
	return &authorCache{users: users, entries: make(map[string]chat.Author)}
}

func (c *authorCache) resolve(ctx context.Context, userID string) (chat.Author, error) {
	if userID == "" {
		return chat.Author{}, fmt.Errorf("%w: record has no user id", chat.ErrAuthorResolution)
	}

	c.mu.Lock()
	a, ok := c.entries[userID]
	c.mu.Unlock()
	if ok {
		return a, nil
	}

	user, err := c.users.GetUser(ctx, userID)
	if err != nil {
		return chat.Author{}, fmt.Errorf("%w: %w", chat.ErrAuthorResolution, err)
	}

	a = user.Author()
	c.mu.Lock()
	c.entries[userID] = a
	c.mu.Unlock()
	return a, nil
}

// forget drops a cached author, e.g. after an avatar change.
func (c *authorCache) forget(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}
