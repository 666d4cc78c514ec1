package classchat

import (
	"context"
	"testing"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateClass(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess, err := h.svc.CreateClass(ctx, CreateClassInput{
		Name:        "Biology 101",
		Code:        "bio-2024",
		AdminName:   "Dr Patel",
		AdminAvatar: "🧬",
	})
	require.NoError(t, err)

	assert.True(t, sess.Authenticated())
	assert.True(t, sess.User.Admin)
	assert.Equal(t, "🧬", sess.User.Avatar)

	channels, err := h.svc.Channels(ctx, sess.ClassID)
	require.NoError(t, err)
	assert.Len(t, channels, len(chat.DefaultChannels(sess.ClassID)))

	_, err = h.svc.Authorize(ctx, sess)
	assert.NoError(t, err)
}

func TestCreateClass_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateClass(context.Background(), CreateClassInput{
		Code:        "abc",
		AdminAvatar: "not an emoji",
	})

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)

	fields := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		fields[i] = fe.Field
	}
	assert.ElementsMatch(t, []string{"name", "code", "admin", "avatar"}, fields)
}

func TestJoin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner, err := h.svc.CreateClass(ctx, CreateClassInput{Name: "History", Code: "1066", AdminName: "Mr Hale"})
	require.NoError(t, err)

	sess, err := h.svc.Join(ctx, JoinInput{Code: "1066", Name: "Sarah Chen", Avatar: "🦊"})
	require.NoError(t, err)
	assert.Equal(t, owner.ClassID, sess.ClassID)
	assert.False(t, sess.User.Admin)
	assert.Equal(t, "SC", chat.Author{Name: sess.User.Name}.Glyph())

	_, err = h.svc.Join(ctx, JoinInput{Code: "wrong", Name: "Sarah Chen"})
	assert.ErrorIs(t, err, chat.ErrClassNotFound)

	_, err = h.svc.Join(ctx, JoinInput{Code: "1066", Name: "Sam", Avatar: "🦊🦊"})
	assertFieldError(t, err, "avatar", chat.ErrInvalidAvatar)
}

func TestEnsureDefaultChannels_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.EnsureDefaultChannels(ctx, h.classID))
	require.NoError(t, h.svc.EnsureDefaultChannels(ctx, h.classID))

	channels, err := h.svc.Channels(ctx, h.classID)
	require.NoError(t, err)
	assert.Len(t, channels, 6)
}

func TestChannelsGroupedForDisplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	actions := authorize(t, h)
	_, err := actions.CreateChannel(ctx, "Lab Partners", false)
	require.NoError(t, err)
	require.NoError(t, h.catalog.InsertChannel(ctx, chat.Channel{ID: "misc", ClassID: h.classID, Name: "Misc"}))

	channels, err := h.svc.Channels(ctx, h.classID)
	require.NoError(t, err)

	last := -1
	for _, ch := range channels {
		rank := groupRank(ch.Group)
		assert.GreaterOrEqual(t, rank, last, "channel %s out of group order", ch.ID)
		last = rank
	}
	assert.Equal(t, "misc", channels[len(channels)-1].ID)
}

func TestSetAvatar(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess, err := h.svc.SetAvatar(ctx, h.student, "🚀")
	require.NoError(t, err)
	assert.Equal(t, "🚀", sess.User.Avatar)

	stored, err := h.dir.GetUser(ctx, h.student.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "🚀", stored.Avatar)

	_, err = h.svc.SetAvatar(ctx, h.student, "xx")
	assertFieldError(t, err, "avatar", chat.ErrInvalidAvatar)

	refreshed, err := h.svc.Refresh(ctx, h.student)
	require.NoError(t, err)
	assert.Equal(t, "🚀", refreshed.User.Avatar)
}

func assertFieldError(t *testing.T, err error, field string, want error) {
	t.Helper()

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	for _, fe := range fieldErrs {
		if fe.Field == field {
			assert.ErrorIs(t, fe.Err, want)
			return
		}
	}
	t.Errorf("no error for field %q in %v", field, fieldErrs)
}

func TestMembers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner, err := h.svc.CreateClass(ctx, CreateClassInput{Name: "Art", Code: "easel", AdminName: "Frida"})
	require.NoError(t, err)
	_, err = h.svc.Join(ctx, JoinInput{Code: "easel", Name: "Diego"})
	require.NoError(t, err)

	members, err := h.svc.Members(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = h.svc.Members(ctx, chat.Session{})
	assert.ErrorIs(t, err, chat.ErrNotAuthenticated)
}
