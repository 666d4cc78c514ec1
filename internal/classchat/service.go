// Package classchat wires the chat core to its collaborators: live
// subscriptions, the send pipeline, channel views, admin actions, and
// account flows.
package classchat

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/core/moderation"
	"github.com/hay-kot/classchat/internal/core/timeline"
	"github.com/rs/zerolog"
)

// DefaultChannelID is the channel a session opens when none is chosen.
const DefaultChannelID = "general"

// Deps are the collaborators a Service is built from.
type Deps struct {
	Directory  chat.Directory
	Catalog    chat.ChannelCatalog
	Messages   chat.MessageStore
	Feed       chat.Feed
	Moderation chat.ModerationStore
	Media      chat.MediaStorage
	Audit      chat.AuditLog
}

// Options tune service behavior. Zero values fall back to defaults.
type Options struct {
	MatchWindow         time.Duration
	DefaultMuteDuration time.Duration
	DefaultMuteReason   string
	DefaultBlockReason  string
}

func (o Options) withDefaults() Options {
	if o.MatchWindow <= 0 {
		o.MatchWindow = timeline.DefaultMatchWindow
	}
	if o.DefaultMuteDuration <= 0 {
		o.DefaultMuteDuration = 15 * time.Minute
	}
	if o.DefaultMuteReason == "" {
		o.DefaultMuteReason = "rule violation"
	}
	if o.DefaultBlockReason == "" {
		o.DefaultBlockReason = "maintenance"
	}
	return o
}

// Service orchestrates class chat operations.
type Service struct {
	deps       Deps
	opts       Options
	log        zerolog.Logger
	resolver   *moderation.Resolver
	subscriber *Subscriber
	sender     *Sender
	now        func() time.Time
}

// New creates a new Service.
func New(deps Deps, opts Options, log zerolog.Logger) *Service {
	resolver := moderation.NewResolver(deps.Moderation, deps.Directory)
	return &Service{
		deps:       deps,
		opts:       opts.withDefaults(),
		log:        log,
		resolver:   resolver,
		subscriber: NewSubscriber(deps.Feed, deps.Directory, log.With().Str("component", "subscriber").Logger()),
		sender:     NewSender(deps.Messages, resolver, log.With().Str("component", "sender").Logger()),
		now:        time.Now,
	}
}

// WithClock overrides the time source used for moderation and admin actions.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.resolver.WithClock(now)
	s.sender.now = now
	return s
}

// NewRoom opens a channel view for sess. The room must be closed by the
// caller.
func (s *Service) NewRoom(ctx context.Context, sess chat.Session) *Room {
	base, cancel := context.WithCancel(ctx)
	return &Room{
		sess:        sess,
		messages:    s.deps.Messages,
		subscriber:  s.subscriber,
		sender:      s.sender,
		gate:        s.resolver,
		matchWindow: s.opts.MatchWindow,
		log:         s.log.With().Str("component", "room").Str("class_id", sess.ClassID).Str("user_id", sess.User.ID).Logger(),
		base:        base,
		cancel:      cancel,
		events:      make(chan RoomEvent, roomEventBuffer),
	}
}

// Channels returns the class's channels ordered by group. Catalog order is
// kept within a group.
func (s *Service) Channels(ctx context.Context, classID string) ([]chat.Channel, error) {
	channels, err := s.deps.Catalog.ListChannels(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	slices.SortStableFunc(channels, func(a, b chat.Channel) int {
		return cmp.Compare(groupRank(a.Group), groupRank(b.Group))
	})
	return channels, nil
}

func groupRank(group string) int {
	switch group {
	case chat.GroupGeneral:
		return 0
	case chat.GroupTopics:
		return 1
	case chat.GroupGroups:
		return 2
	default:
		return 3
	}
}

// Members returns the users of the session's class.
func (s *Service) Members(ctx context.Context, sess chat.Session) ([]chat.User, error) {
	if !sess.Authenticated() {
		return nil, chat.ErrNotAuthenticated
	}
	users, err := s.deps.Directory.ListUsers(ctx, sess.ClassID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// History returns the committed messages of a channel.
func (s *Service) History(ctx context.Context, key chat.Key) ([]chat.Message, error) {
	msgs, err := s.deps.Messages.ListMessages(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Send posts a message without an open view.
func (s *Service) Send(ctx context.Context, sess chat.Session, channelID string, draft chat.Draft) (chat.Message, error) {
	return s.sender.Send(ctx, sess, channelID, draft, nil)
}

// Follow subscribes to a channel outside of a Room.
func (s *Service) Follow(ctx context.Context, key chat.Key, h Handlers) (*Subscription, error) {
	return s.subscriber.Open(ctx, key, h)
}

// Moderation reports whether the session user may currently send.
func (s *Service) Moderation(ctx context.Context, sess chat.Session) (moderation.Verdict, error) {
	return s.resolver.IsSendAllowed(ctx, sess.ClassID, sess.User.ID)
}

// UploadMedia stores an attachment for a channel and returns its reference.
func (s *Service) UploadMedia(ctx context.Context, key chat.Key, filename string, r io.Reader) (chat.Media, error) {
	if s.deps.Media == nil {
		return chat.Media{}, fmt.Errorf("%w: media storage not configured", chat.ErrMediaRejected)
	}

	media, err := s.deps.Media.Upload(ctx, key, filename, r)
	if err != nil {
		return chat.Media{}, fmt.Errorf("upload %s: %w", filename, err)
	}

	s.log.Debug().Str("class_id", key.ClassID).Str("channel_id", key.ChannelID).Str("url", media.URL).Msg("media uploaded")
	return media, nil
}
