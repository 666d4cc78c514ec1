package classchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/pkg/randid"
	"github.com/hay-kot/criterio"
)

// Audit actions.
const (
	ActionMute          = "mute"
	ActionUnmute        = "unmute"
	ActionBlock         = "block"
	ActionUnblock       = "unblock"
	ActionChannelCreate = "channel.create"
	ActionChannelDelete = "channel.delete"
	ActionMessageEdit   = "message.edit"
	ActionMessageDelete = "message.delete"
	ActionGrant         = "grant"
	ActionPrune         = "prune"
)

// Pruner removes old messages. Implemented by message stores that support
// retention.
type Pruner interface {
	Prune(ctx context.Context, classID, channelPattern string, before time.Time) (int, error)
}

// Archiver sets aside the messages of a deleted channel. Implemented by
// message stores that keep per-channel files.
type Archiver interface {
	ArchiveChannel(ctx context.Context, key chat.Key) error
}

// Actions are the privileged operations of one admin in one class. Obtain
// them through Service.Authorize.
type Actions struct {
	svc     *Service
	classID string
	actorID string
}

// Authorize checks that sess belongs to an admin and returns the actions
// available to them. Returns chat.ErrAdminCheckFailed otherwise.
func (s *Service) Authorize(ctx context.Context, sess chat.Session) (*Actions, error) {
	if !sess.Authenticated() {
		return nil, chat.ErrNotAuthenticated
	}

	admin, err := s.deps.Directory.IsAdmin(ctx, sess.User.ID)
	if err != nil {
		return nil, fmt.Errorf("check admin: %w", err)
	}
	if !admin {
		return nil, chat.ErrAdminCheckFailed
	}

	return &Actions{svc: s, classID: sess.ClassID, actorID: sess.User.ID}, nil
}

// MuteUser prevents userID from sending for d. A zero duration uses the
// configured default and an empty reason uses the default reason. The new
// record replaces any existing mute.
func (a *Actions) MuteUser(ctx context.Context, userID string, d time.Duration, reason string) (chat.MuteRecord, error) {
	if d < 0 {
		return chat.MuteRecord{}, criterio.NewFieldErrors("duration", errors.New("must not be negative"))
	}
	if d == 0 {
		d = a.svc.opts.DefaultMuteDuration
	}
	if reason == "" {
		reason = a.svc.opts.DefaultMuteReason
	}

	target, err := a.member(ctx, userID)
	if err != nil {
		return chat.MuteRecord{}, err
	}

	now := a.svc.now()
	until := now.Add(d)
	rec := chat.MuteRecord{
		ClassID:   a.classID,
		UserID:    target.ID,
		Reason:    reason,
		Until:     &until,
		CreatedBy: a.actorID,
		CreatedAt: now,
	}

	if err := a.svc.deps.Moderation.SetMute(ctx, rec); err != nil {
		return chat.MuteRecord{}, fmt.Errorf("set mute: %w", err)
	}

	a.audit(ctx, ActionMute, target.ID, fmt.Sprintf("%s for %s", reason, d))
	return rec, nil
}

// UnmuteUser clears userID's mute.
func (a *Actions) UnmuteUser(ctx context.Context, userID string) error {
	if err := a.svc.deps.Moderation.ClearMute(ctx, a.classID, userID); err != nil {
		return fmt.Errorf("clear mute: %w", err)
	}
	a.audit(ctx, ActionUnmute, userID, "")
	return nil
}

// Mutes lists the class's mute records, expired ones included.
func (a *Actions) Mutes(ctx context.Context) ([]chat.MuteRecord, error) {
	recs, err := a.svc.deps.Moderation.ListMutes(ctx, a.classID)
	if err != nil {
		return nil, fmt.Errorf("list mutes: %w", err)
	}
	return recs, nil
}

// BlockClass prevents every non-admin from sending. A zero duration blocks
// indefinitely. The new block replaces any existing one.
func (a *Actions) BlockClass(ctx context.Context, reason string, d time.Duration) (chat.ClassBlock, error) {
	if d < 0 {
		return chat.ClassBlock{}, criterio.NewFieldErrors("duration", errors.New("must not be negative"))
	}
	if reason == "" {
		reason = a.svc.opts.DefaultBlockReason
	}

	now := a.svc.now()
	block := chat.ClassBlock{
		ClassID:   a.classID,
		Reason:    reason,
		CreatedBy: a.actorID,
		CreatedAt: now,
	}
	detail := reason + " indefinitely"
	if d > 0 {
		until := now.Add(d)
		block.Until = &until
		detail = fmt.Sprintf("%s for %s", reason, d)
	}

	if err := a.svc.deps.Moderation.SetBlock(ctx, block); err != nil {
		return chat.ClassBlock{}, fmt.Errorf("set block: %w", err)
	}

	a.audit(ctx, ActionBlock, a.classID, detail)
	return block, nil
}

// UnblockClass lifts the class block.
func (a *Actions) UnblockClass(ctx context.Context) error {
	if err := a.svc.deps.Moderation.ClearBlock(ctx, a.classID); err != nil {
		return fmt.Errorf("clear block: %w", err)
	}
	a.audit(ctx, ActionUnblock, a.classID, "")
	return nil
}

// CreateChannel adds a channel whose id is derived from name. Returns
// chat.ErrDuplicateChannelID if the id is taken.
func (a *Actions) CreateChannel(ctx context.Context, name string, private bool) (chat.Channel, error) {
	name = strings.TrimSpace(name)
	id := chat.ChannelID(name)
	if id == "" {
		return chat.Channel{}, criterio.NewFieldErrors("name", errors.New("is required"))
	}

	existing, err := a.svc.deps.Catalog.ListChannels(ctx, a.classID)
	if err != nil {
		return chat.Channel{}, fmt.Errorf("list channels: %w", err)
	}
	for _, ch := range existing {
		if ch.ID == id {
			return chat.Channel{}, fmt.Errorf("%w: %s", chat.ErrDuplicateChannelID, id)
		}
	}

	ch := chat.Channel{
		ID:      id,
		ClassID: a.classID,
		Name:    name,
		Private: private,
		Group:   chat.GroupGroups,
	}
	if err := a.svc.deps.Catalog.InsertChannel(ctx, ch); err != nil {
		return chat.Channel{}, fmt.Errorf("insert channel: %w", err)
	}

	a.audit(ctx, ActionChannelCreate, id, name)
	return ch, nil
}

// DeleteChannel removes a channel. Protected defaults are refused with
// chat.ErrProtectedChannel.
func (a *Actions) DeleteChannel(ctx context.Context, channelID string) error {
	if chat.IsProtectedChannel(channelID) {
		return fmt.Errorf("%w: %s", chat.ErrProtectedChannel, channelID)
	}

	if err := a.svc.deps.Catalog.DeleteChannel(ctx, a.classID, channelID); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}

	if archiver, ok := a.svc.deps.Messages.(Archiver); ok {
		key := chat.Key{ClassID: a.classID, ChannelID: channelID}
		if err := archiver.ArchiveChannel(ctx, key); err != nil {
			return fmt.Errorf("archive channel messages: %w", err)
		}
	}

	a.audit(ctx, ActionChannelDelete, channelID, "")
	return nil
}

// EditMessage replaces the content of a committed message.
func (a *Actions) EditMessage(ctx context.Context, channelID, messageID, content string) (chat.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return chat.Message{}, chat.ErrEmptyMessage
	}

	key := chat.Key{ClassID: a.classID, ChannelID: channelID}
	msg, err := a.svc.deps.Messages.UpdateMessage(ctx, key, messageID, content)
	if err != nil {
		return chat.Message{}, fmt.Errorf("update message: %w", err)
	}

	a.audit(ctx, ActionMessageEdit, key.String()+"/"+messageID, "")
	return msg, nil
}

// DeleteMessage removes a committed message.
func (a *Actions) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	key := chat.Key{ClassID: a.classID, ChannelID: channelID}
	if err := a.svc.deps.Messages.DeleteMessage(ctx, key, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	a.audit(ctx, ActionMessageDelete, key.String()+"/"+messageID, "")
	return nil
}

// Grant makes userID an admin of the class.
func (a *Actions) Grant(ctx context.Context, userID string) (chat.User, error) {
	user, err := a.member(ctx, userID)
	if err != nil {
		return chat.User{}, err
	}
	if user.Admin {
		return user, nil
	}

	user.Admin = true
	if err := a.svc.deps.Directory.SaveUser(ctx, user); err != nil {
		return chat.User{}, fmt.Errorf("save user: %w", err)
	}

	a.audit(ctx, ActionGrant, user.ID, user.Name)
	return user, nil
}

// Prune deletes messages older than olderThan from every channel whose id
// matches pattern. An empty pattern matches all channels.
func (a *Actions) Prune(ctx context.Context, pattern string, olderThan time.Duration) (int, error) {
	pruner, ok := a.svc.deps.Messages.(Pruner)
	if !ok {
		return 0, fmt.Errorf("message store does not support pruning")
	}
	if olderThan <= 0 {
		return 0, criterio.NewFieldErrors("older-than", errors.New("must be positive"))
	}
	if pattern == "" {
		pattern = "*"
	}

	n, err := pruner.Prune(ctx, a.classID, pattern, a.svc.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}

	a.audit(ctx, ActionPrune, pattern, fmt.Sprintf("%d messages older than %s", n, olderThan))
	return n, nil
}

// Log returns the class's audit entries, newest first.
func (a *Actions) Log(ctx context.Context, limit int) ([]chat.AuditEntry, error) {
	if a.svc.deps.Audit == nil {
		return nil, nil
	}
	entries, err := a.svc.deps.Audit.List(ctx, a.classID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return entries, nil
}

// member returns userID if it belongs to the admin's class.
func (a *Actions) member(ctx context.Context, userID string) (chat.User, error) {
	user, err := a.svc.deps.Directory.GetUser(ctx, userID)
	if err != nil {
		return chat.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	if user.ClassID != a.classID {
		return chat.User{}, fmt.Errorf("get user %s: %w", userID, chat.ErrNotFound)
	}
	return user, nil
}

// audit records an action. Failures are logged, not returned.
func (a *Actions) audit(ctx context.Context, action, target, detail string) {
	log := a.svc.log.With().
		Str("class_id", a.classID).
		Str("user_id", a.actorID).
		Str("action", action).
		Str("target", target).
		Logger()
	log.Info().Str("detail", detail).Msg("admin action")

	if a.svc.deps.Audit == nil {
		return
	}

	err := a.svc.deps.Audit.Record(ctx, chat.AuditEntry{
		ID:        randid.Generate(8),
		ClassID:   a.classID,
		ActorID:   a.actorID,
		Action:    action,
		Target:    target,
		Detail:    detail,
		Timestamp: a.svc.now(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to record audit entry")
	}
}
