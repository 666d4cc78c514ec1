package classchat

import (
	"context"
	"testing"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authorize(t *testing.T, h *harness) *Actions {
	t.Helper()
	actions, err := h.svc.Authorize(context.Background(), h.admin)
	require.NoError(t, err)
	return actions
}

func TestAuthorize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Authorize(ctx, h.student)
	assert.ErrorIs(t, err, chat.ErrAdminCheckFailed)

	_, err = h.svc.Authorize(ctx, chat.Session{})
	assert.ErrorIs(t, err, chat.ErrNotAuthenticated)

	actions, err := h.svc.Authorize(ctx, h.admin)
	require.NoError(t, err)
	assert.NotNil(t, actions)
}

func TestMuteUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actions := authorize(t, h)

	rec, err := actions.MuteUser(ctx, h.student.User.ID, time.Hour, "spam")
	require.NoError(t, err)
	require.NotNil(t, rec.Until)
	assert.Equal(t, h.now.Add(time.Hour), *rec.Until)
	assert.Equal(t, h.admin.User.ID, rec.CreatedBy)

	verdict, err := h.svc.Moderation(ctx, h.student)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, "spam", verdict.Reason)

	// Latest call wins, it does not extend.
	rec, err = actions.MuteUser(ctx, h.student.User.ID, 10*time.Minute, "")
	require.NoError(t, err)
	assert.Equal(t, h.now.Add(10*time.Minute), *rec.Until)
	assert.Equal(t, "rule violation", rec.Reason)

	// Expiry is evaluated at read time.
	h.now = h.now.Add(10 * time.Minute)
	verdict, err = h.svc.Moderation(ctx, h.student)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)

	require.NoError(t, actions.UnmuteUser(ctx, h.student.User.ID))
	mutes, err := actions.Mutes(ctx)
	require.NoError(t, err)
	assert.Empty(t, mutes)
}

func TestMuteUser_DefaultsAndValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actions := authorize(t, h)

	rec, err := actions.MuteUser(ctx, h.student.User.ID, 0, "")
	require.NoError(t, err)
	assert.Equal(t, h.now.Add(15*time.Minute), *rec.Until)

	_, err = actions.MuteUser(ctx, h.student.User.ID, -time.Minute, "")
	var fieldErrs criterio.FieldErrors
	assert.ErrorAs(t, err, &fieldErrs)

	_, err = actions.MuteUser(ctx, "u-nobody", time.Hour, "")
	assert.ErrorIs(t, err, chat.ErrNotFound)

	other := h.dir.add(chat.User{ID: "u-other", ClassID: "class-2", Name: "Outsider"})
	_, err = actions.MuteUser(ctx, other.ID, time.Hour, "")
	assert.ErrorIs(t, err, chat.ErrNotFound, "cannot mute users of another class")
}

func TestBlockClass(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actions := authorize(t, h)

	block, err := actions.BlockClass(ctx, "", 0)
	require.NoError(t, err)
	assert.Nil(t, block.Until, "zero duration blocks indefinitely")
	assert.Equal(t, "maintenance", block.Reason)

	block, err = actions.BlockClass(ctx, "exam in progress", 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, h.now.Add(2*time.Hour), *block.Until)

	verdict, err := h.svc.Moderation(ctx, h.student)
	require.NoError(t, err)
	assert.Equal(t, chat.ScopeBlock, verdict.Scope)
	assert.Equal(t, "exam in progress", verdict.Reason)

	require.NoError(t, actions.UnblockClass(ctx))
	verdict, err = h.svc.Moderation(ctx, h.student)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
}

func TestAdminMuteStillAppliesDuringBlock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actions := authorize(t, h)

	_, err := actions.BlockClass(ctx, "maintenance", time.Hour)
	require.NoError(t, err)
	_, err = actions.MuteUser(ctx, h.admin.User.ID, time.Hour, "self-imposed")
	require.NoError(t, err)

	_, err = h.svc.Send(ctx, h.admin, "general", chat.Draft{Content: "x"})
	var blocked *chat.SendBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, chat.ScopeMute, blocked.Scope)
}

func TestCreateChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actions := authorize(t, h)

	ch, err := actions.CreateChannel(ctx, "Homework Help", false)
	require.NoError(t, err)
	assert.Equal(t, "homework-help", ch.ID)
	assert.Equal(t, "Homework Help", ch.Name)

	_, err = actions.CreateChannel(ctx, "Homework Help", true)
	assert.ErrorIs(t, err, chat.ErrDuplicateChannelID)

	_, err = actions.CreateChannel(ctx, "homework   help", true)
	assert.ErrorIs(t, err, chat.ErrDuplicateChannelID, "ids collide after normalisation")

	_, err = actions.CreateChannel(ctx, "   ", false)
	var fieldErrs criterio.FieldErrors
	assert.ErrorAs(t, err, &fieldErrs)
}

func TestDeleteChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actions := authorize(t, h)

	assert.ErrorIs(t, actions.DeleteChannel(ctx, "general"), chat.ErrProtectedChannel)
	assert.ErrorIs(t, actions.DeleteChannel(ctx, "announcements"), chat.ErrProtectedChannel)

	require.NoError(t, actions.DeleteChannel(ctx, "exams"))
	assert.ErrorIs(t, actions.DeleteChannel(ctx, "exams"), chat.ErrNotFound)
	assert.Equal(t, []chat.Key{{ClassID: h.classID, ChannelID: "exams"}}, h.messages.archived)

	channels, err := h.svc.Channels(ctx, h.classID)
	require.NoError(t, err)
	for _, ch := range channels {
		assert.NotEqual(t, "exams", ch.ID)
	}
}

func TestEditAndDeleteMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actions := authorize(t, h)

	msg, err := h.svc.Send(ctx, h.student, "general", chat.Draft{Content: "bad word"})
	require.NoError(t, err)

	edited, err := actions.EditMessage(ctx, "general", msg.ID, "[removed]")
	require.NoError(t, err)
	assert.Equal(t, "[removed]", edited.Content)

	_, err = actions.EditMessage(ctx, "general", msg.ID, " ")
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)

	require.NoError(t, actions.DeleteMessage(ctx, "general", msg.ID))
	assert.ErrorIs(t, actions.DeleteMessage(ctx, "general", msg.ID), chat.ErrNotFound)
}

func TestGrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actions := authorize(t, h)

	user, err := actions.Grant(ctx, h.student.User.ID)
	require.NoError(t, err)
	assert.True(t, user.Admin)

	_, err = h.svc.Authorize(ctx, h.student)
	assert.NoError(t, err)
}

func TestPrune_UnsupportedStore(t *testing.T) {
	h := newHarness(t)
	actions := authorize(t, h)

	_, err := actions.Prune(context.Background(), "*", time.Hour)
	assert.Error(t, err)
}

func TestAuditTrail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actions := authorize(t, h)

	_, _ = actions.MuteUser(ctx, h.student.User.ID, time.Hour, "")
	_, _ = actions.BlockClass(ctx, "", time.Hour)
	_ = actions.UnblockClass(ctx)
	_, _ = actions.CreateChannel(ctx, "Study Group", false)
	_ = actions.DeleteChannel(ctx, "general") // refused, not audited

	assert.Equal(t, []string{ActionMute, ActionBlock, ActionUnblock, ActionChannelCreate}, h.audit.actions())

	entries, err := actions.Log(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionChannelCreate, entries[0].Action)
	assert.Equal(t, h.admin.User.ID, entries[0].ActorID)
}
