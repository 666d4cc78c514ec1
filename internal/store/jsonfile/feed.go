package jsonfile

import (
	"context"
	"fmt"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/rs/zerolog"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxFailures  = 3
)

// Feed implements chat.Feed by tailing a MsgStore change log. Only changes
// made after Subscribe are delivered.
type Feed struct {
	store       *MsgStore
	interval    time.Duration
	maxFailures int
	log         zerolog.Logger
}

// NewFeed creates a polling feed over store.
func NewFeed(store *MsgStore, log zerolog.Logger) *Feed {
	return &Feed{
		store:       store,
		interval:    defaultPollInterval,
		maxFailures: defaultMaxFailures,
		log:         log,
	}
}

// WithInterval sets the polling interval.
func (f *Feed) WithInterval(d time.Duration) *Feed {
	if d > 0 {
		f.interval = d
	}
	return f
}

// WithMaxFailures sets how many consecutive read failures end a subscription
// with a disconnect.
func (f *Feed) WithMaxFailures(n int) *Feed {
	if n > 0 {
		f.maxFailures = n
	}
	return f
}

// Subscribe starts tailing key. The returned channel is closed when ctx is
// cancelled or after a disconnect event.
func (f *Feed) Subscribe(ctx context.Context, key chat.Key) (<-chan chat.Event, error) {
	cursor, err := f.store.Cursor(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}

	out := make(chan chat.Event, 16)
	log := f.log.With().Str("class_id", key.ClassID).Str("channel_id", key.ChannelID).Logger()

	go func() {
		defer close(out)

		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			changes, next, gap, err := f.store.ChangesSince(ctx, key, cursor)
			if err != nil {
				failures++
				log.Debug().Err(err).Int("failures", failures).Msg("poll failed")
				if failures >= f.maxFailures {
					ev := chat.Event{Type: chat.EventDisconnected, Err: fmt.Errorf("%w: %w", chat.ErrTransportDisconnected, err)}
					select {
					case out <- ev:
					case <-ctx.Done():
					}
					return
				}
				continue
			}
			failures = 0

			if gap {
				log.Warn().Int64("cursor", cursor).Msg("change log trimmed past cursor, some changes were skipped")
			}

			for _, c := range changes {
				select {
				case out <- chat.Event{Type: c.Type, Record: c.Record}:
				case <-ctx.Done():
					return
				}
			}
			cursor = next
		}
	}()

	return out, nil
}
