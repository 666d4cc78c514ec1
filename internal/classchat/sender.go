package classchat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/core/moderation"
	"github.com/hay-kot/classchat/internal/core/timeline"
	"github.com/rs/zerolog"
)

const tempIDPrefix = "tmp-"

// Gate decides whether a user may send right now.
type Gate interface {
	IsSendAllowed(ctx context.Context, classID, userID string) (moderation.Verdict, error)
}

// Tracker receives the optimistic entry of a send and its resolution.
// *timeline.Timeline implements it.
type Tracker interface {
	ApplyOptimistic(entry chat.Message) bool
	ResolveOptimistic(tempID string, outcome timeline.Outcome) bool
}

// Sender validates sends, shows them optimistically, and commits them.
type Sender struct {
	store chat.MessageStore
	gate  Gate
	log   zerolog.Logger
	now   func() time.Time
}

// NewSender creates a Sender.
func NewSender(store chat.MessageStore, gate Gate, log zerolog.Logger) *Sender {
	return &Sender{store: store, gate: gate, log: log, now: time.Now}
}

// Send checks, in order, that the session is authenticated, that the draft
// has content or media, and that moderation allows the user to send. Rejected
// sends never touch tl.
//
// Accepted sends are added to tl as a pending entry before the durable
// write and resolved afterwards. tl may be nil when no view is open. A failed
// write returns a *chat.SendFailedError carrying the draft.
func (s *Sender) Send(ctx context.Context, sess chat.Session, channelID string, draft chat.Draft, tl Tracker) (chat.Message, error) {
	if !sess.Authenticated() {
		return chat.Message{}, chat.ErrNotAuthenticated
	}
	if draft.IsEmpty() {
		return chat.Message{}, chat.ErrEmptyMessage
	}

	verdict, err := s.gate.IsSendAllowed(ctx, sess.ClassID, sess.User.ID)
	if err != nil {
		return chat.Message{}, fmt.Errorf("check moderation: %w", err)
	}
	if err := verdict.Err(); err != nil {
		return chat.Message{}, err
	}

	content := strings.TrimSpace(draft.Content)
	tempID := tempIDPrefix + uuid.NewString()
	log := s.log.With().
		Str("class_id", sess.ClassID).
		Str("channel_id", channelID).
		Str("user_id", sess.User.ID).
		Str("temp_id", tempID).
		Logger()

	if tl != nil {
		tl.ApplyOptimistic(chat.Message{
			ID:        tempID,
			ClassID:   sess.ClassID,
			ChannelID: channelID,
			Author:    sess.Author(),
			Content:   content,
			Media:     draft.Media,
			CreatedAt: s.now(),
			Pending:   true,
		})
	}

	msg, err := s.store.InsertMessage(ctx, chat.NewMessage{
		ClassID:   sess.ClassID,
		ChannelID: channelID,
		Author:    sess.Author(),
		Content:   content,
		Media:     draft.Media,
	})
	if err != nil {
		log.Error().Err(err).Msg("durable write failed")
		if tl != nil {
			tl.ResolveOptimistic(tempID, timeline.Failed())
		}
		return chat.Message{}, &chat.SendFailedError{Draft: draft, Err: err}
	}

	if tl != nil {
		tl.ResolveOptimistic(tempID, timeline.Confirmed(msg))
	}
	log.Debug().Str("message_id", msg.ID).Msg("message sent")
	return msg, nil
}
