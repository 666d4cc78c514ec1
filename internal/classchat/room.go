package classchat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/core/moderation"
	"github.com/hay-kot/classchat/internal/core/timeline"
	"github.com/rs/zerolog"
)

// RoomEventKind describes what changed in a Room.
type RoomEventKind int

const (
	// RoomMessages means the active message list changed.
	RoomMessages RoomEventKind = iota
	// RoomLoaded means history for the active channel finished loading.
	RoomLoaded
	// RoomDisconnected means the live feed for the active channel was lost.
	RoomDisconnected
)

// RoomEvent notifies the view of a change. Views re-read Room state on
// receipt; events carry no message data.
type RoomEvent struct {
	Kind RoomEventKind
	Key  chat.Key
	Err  error
}

// RoomState is a snapshot of the active channel view.
type RoomState struct {
	Key     chat.Key
	Loading bool
	// Disconnected holds the transport error once the live feed is lost.
	Disconnected error
}

// Ticket identifies one channel switch. Results of work started for a ticket
// are only applied while that switch is still the active one.
type Ticket struct {
	epoch uint64
	key   chat.Key
}

// Key returns the channel the ticket was issued for.
func (t Ticket) Key() chat.Key {
	return t.key
}

const roomEventBuffer = 64

// Room is the active channel view of one session. It owns at most one live
// subscription at a time and guards against late results of superseded
// channel switches.
type Room struct {
	sess        chat.Session
	messages    chat.MessageStore
	subscriber  *Subscriber
	sender      *Sender
	gate        Gate
	matchWindow time.Duration
	log         zerolog.Logger

	// base scopes live subscriptions to the room's lifetime rather than to
	// the request that switched channels.
	base   context.Context
	cancel context.CancelFunc

	epoch atomic.Uint64

	mu      sync.Mutex
	key     chat.Key
	tl      *timeline.Timeline
	handle  *Subscription
	loading bool
	connErr error
	closed  bool
	events  chan RoomEvent
}

// Session returns the session the room was opened for.
func (r *Room) Session() chat.Session {
	return r.sess
}

// Events delivers change notifications. The channel is closed by Close.
// Notifications are dropped if the buffer is full; the view still converges
// because every event means "re-read state".
func (r *Room) Events() <-chan RoomEvent {
	return r.events
}

// Switch makes channelID the active channel. It releases the previous
// subscription, starts an empty timeline, and opens the live feed for the new
// channel. History is not loaded; pass the ticket to Load.
func (r *Room) Switch(channelID string) (Ticket, error) {
	key := chat.Key{ClassID: r.sess.ClassID, ChannelID: channelID}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Ticket{}, fmt.Errorf("room closed")
	}
	prev := r.handle
	r.handle = nil
	epoch := r.epoch.Add(1)
	tl := timeline.New(key, timeline.WithMatchWindow(r.matchWindow))
	r.key = key
	r.tl = tl
	r.loading = true
	r.connErr = nil
	r.mu.Unlock()

	prev.Close()

	log := r.log.With().Str("channel_id", channelID).Uint64("epoch", epoch).Logger()
	log.Debug().Msg("switching channel")

	handle, err := r.subscriber.Open(r.base, key, r.handlers(epoch, tl, log))
	if err != nil {
		r.mu.Lock()
		if r.epoch.Load() == epoch {
			r.connErr = err
		}
		r.mu.Unlock()
		return Ticket{}, err
	}

	r.mu.Lock()
	if r.closed || r.epoch.Load() != epoch {
		r.mu.Unlock()
		handle.Close()
		log.Debug().Msg("switch superseded before subscription opened")
		return Ticket{}, chat.ErrStaleChannelResponse
	}
	r.handle = handle
	r.mu.Unlock()

	r.notify(RoomEvent{Kind: RoomMessages, Key: key})
	return Ticket{epoch: epoch, key: key}, nil
}

// Load fetches history for the ticket's channel. If another switch happened
// while the request was in flight the result is discarded and
// chat.ErrStaleChannelResponse is returned.
func (r *Room) Load(ctx context.Context, t Ticket) error {
	history, err := r.messages.ListMessages(ctx, t.key)

	r.mu.Lock()
	if r.epoch.Load() != t.epoch || r.closed {
		r.mu.Unlock()
		r.log.Debug().Str("channel_id", t.key.ChannelID).Uint64("epoch", t.epoch).Msg("discarding stale history")
		return chat.ErrStaleChannelResponse
	}
	r.loading = false
	tl := r.tl
	r.mu.Unlock()

	if err != nil {
		r.notify(RoomEvent{Kind: RoomLoaded, Key: t.key, Err: err})
		return fmt.Errorf("load history: %w", err)
	}

	tl.LoadHistory(history)
	r.notify(RoomEvent{Kind: RoomLoaded, Key: t.key})
	return nil
}

// Open switches to channelID and loads its history.
func (r *Room) Open(ctx context.Context, channelID string) error {
	t, err := r.Switch(channelID)
	if err != nil {
		return err
	}
	return r.Load(ctx, t)
}

// Reconnect reopens the active channel after a disconnect.
func (r *Room) Reconnect(ctx context.Context) error {
	key := r.State().Key
	if key.ChannelID == "" {
		return fmt.Errorf("no active channel")
	}
	return r.Open(ctx, key.ChannelID)
}

// State returns a snapshot of the active view.
func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomState{Key: r.key, Loading: r.loading, Disconnected: r.connErr}
}

// Messages returns the ordered message list of the active channel.
func (r *Room) Messages() []chat.Message {
	r.mu.Lock()
	tl := r.tl
	r.mu.Unlock()

	if tl == nil {
		return nil
	}
	return tl.Messages()
}

// Send posts draft to the active channel.
func (r *Room) Send(ctx context.Context, draft chat.Draft) (chat.Message, error) {
	r.mu.Lock()
	tl := r.tl
	key := r.key
	r.mu.Unlock()

	if tl == nil {
		return chat.Message{}, fmt.Errorf("no active channel")
	}

	tracker := &notifyingTracker{tl: tl, onChange: func() {
		r.notify(RoomEvent{Kind: RoomMessages, Key: key})
	}}
	return r.sender.Send(ctx, r.sess, key.ChannelID, draft, tracker)
}

// notifyingTracker announces optimistic changes as they happen so the view
// renders the pending entry before the durable write returns.
type notifyingTracker struct {
	tl       *timeline.Timeline
	onChange func()
}

func (n *notifyingTracker) ApplyOptimistic(m chat.Message) bool {
	changed := n.tl.ApplyOptimistic(m)
	if changed {
		n.onChange()
	}
	return changed
}

func (n *notifyingTracker) ResolveOptimistic(tempID string, outcome timeline.Outcome) bool {
	changed := n.tl.ResolveOptimistic(tempID, outcome)
	if changed {
		n.onChange()
	}
	return changed
}

// Moderation reports whether the session user may currently send.
func (r *Room) Moderation(ctx context.Context) (moderation.Verdict, error) {
	return r.gate.IsSendAllowed(ctx, r.sess.ClassID, r.sess.User.ID)
}

// Close releases the subscription and closes the event channel.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.epoch.Add(1)
	handle := r.handle
	r.handle = nil
	close(r.events)
	r.mu.Unlock()

	handle.Close()
	r.cancel()
}

func (r *Room) handlers(epoch uint64, tl *timeline.Timeline, log zerolog.Logger) Handlers {
	current := func() bool { return r.epoch.Load() == epoch }
	key := tl.Key()

	return Handlers{
		OnInsert: func(m chat.Message) {
			if !current() {
				log.Debug().Str("message_id", m.ID).Msg("ignoring insert for inactive channel")
				return
			}
			if tl.ApplyRemoteInsert(m) {
				r.notify(RoomEvent{Kind: RoomMessages, Key: key})
			}
		},
		OnUpdate: func(m chat.Message) {
			if current() && tl.ApplyRemoteUpdate(m) {
				r.notify(RoomEvent{Kind: RoomMessages, Key: key})
			}
		},
		OnDelete: func(id string) {
			if current() && tl.ApplyRemoteDelete(id) {
				r.notify(RoomEvent{Kind: RoomMessages, Key: key})
			}
		},
		OnDisconnect: func(err error) {
			r.mu.Lock()
			if r.epoch.Load() != epoch {
				r.mu.Unlock()
				return
			}
			r.connErr = err
			r.mu.Unlock()
			r.notify(RoomEvent{Kind: RoomDisconnected, Key: key, Err: err})
		},
	}
}

func (r *Room) notify(ev RoomEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.log.Debug().Int("kind", int(ev.Kind)).Msg("room event buffer full, dropping")
	}
}
