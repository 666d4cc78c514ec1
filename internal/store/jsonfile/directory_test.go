package jsonfile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hay-kot/classchat/internal/core/chat"
	"golang.org/x/crypto/bcrypt"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	return NewDirectory(filepath.Join(t.TempDir(), "directory.json")).WithCost(bcrypt.MinCost)
}

func TestDirectory_CreateAndResolveClass(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	class, err := dir.CreateClass(ctx, "Biology 101", "owl-42")
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}
	if class.ID == "" {
		t.Error("class ID should be generated")
	}
	if class.CodeHash == "owl-42" {
		t.Error("security code must not be stored in plain text")
	}

	got, err := dir.ResolveClass(ctx, "owl-42")
	if err != nil {
		t.Fatalf("ResolveClass failed: %v", err)
	}
	if got.ID != class.ID {
		t.Errorf("ResolveClass ID = %q, want %q", got.ID, class.ID)
	}

	if _, err := dir.ResolveClass(ctx, "wrong"); !errors.Is(err, chat.ErrClassNotFound) {
		t.Errorf("ResolveClass(wrong) error = %v, want ErrClassNotFound", err)
	}
}

func TestDirectory_CodeMustBeUnique(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.CreateClass(ctx, "Biology", "same-code"); err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	_, err := dir.CreateClass(ctx, "Chemistry", "same-code")
	if !errors.Is(err, chat.ErrCodeInUse) {
		t.Errorf("CreateClass error = %v, want ErrCodeInUse", err)
	}
}

func TestDirectory_Users(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	class, _ := dir.CreateClass(ctx, "Biology", "owl-42")

	zoe, err := dir.CreateUser(ctx, class.ID, "Zoe", "🦊")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	_, _ = dir.CreateUser(ctx, class.ID, "Adam", "")

	got, err := dir.GetUser(ctx, zoe.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Avatar != "🦊" || got.ClassID != class.ID {
		t.Errorf("GetUser = %+v, want avatar 🦊 in %s", got, class.ID)
	}

	users, err := dir.ListUsers(ctx, class.ID)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 || users[0].Name != "Adam" || users[1].Name != "Zoe" {
		t.Errorf("ListUsers = %+v, want Adam then Zoe", users)
	}

	if _, err := dir.GetUser(ctx, "missing"); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("GetUser(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDirectory_CreateUserUnknownClass(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.CreateUser(context.Background(), "missing", "Zoe", "")
	if !errors.Is(err, chat.ErrClassNotFound) {
		t.Errorf("CreateUser error = %v, want ErrClassNotFound", err)
	}
}

func TestDirectory_AdminFlag(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	class, _ := dir.CreateClass(ctx, "Biology", "owl-42")
	user, _ := dir.CreateUser(ctx, class.ID, "Ms Rivera", "")

	admin, err := dir.IsAdmin(ctx, user.ID)
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if admin {
		t.Error("new users should not be admins")
	}

	user.Admin = true
	if err := dir.SaveUser(ctx, user); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	admin, _ = dir.IsAdmin(ctx, user.ID)
	if !admin {
		t.Error("user should be admin after SaveUser")
	}

	admin, err = dir.IsAdmin(ctx, "missing")
	if err != nil || admin {
		t.Errorf("IsAdmin(missing) = %v, %v, want false, nil", admin, err)
	}

	if err := dir.SaveUser(ctx, chat.User{ID: "missing"}); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("SaveUser(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDirectory_Channels(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	for _, ch := range chat.DefaultChannels("class-1") {
		if err := dir.InsertChannel(ctx, ch); err != nil {
			t.Fatalf("InsertChannel(%s) failed: %v", ch.ID, err)
		}
	}

	err := dir.InsertChannel(ctx, chat.Channel{ID: "general", ClassID: "class-1", Name: "General"})
	if !errors.Is(err, chat.ErrDuplicateChannelID) {
		t.Errorf("duplicate InsertChannel error = %v, want ErrDuplicateChannelID", err)
	}

	// Same id in another class is allowed.
	if err := dir.InsertChannel(ctx, chat.Channel{ID: "general", ClassID: "class-2", Name: "General"}); err != nil {
		t.Errorf("InsertChannel in other class failed: %v", err)
	}

	channels, err := dir.ListChannels(ctx, "class-1")
	if err != nil {
		t.Fatalf("ListChannels failed: %v", err)
	}
	if len(channels) != len(chat.DefaultChannels("class-1")) {
		t.Errorf("ListChannels returned %d channels, want %d", len(channels), len(chat.DefaultChannels("class-1")))
	}

	if err := dir.DeleteChannel(ctx, "class-1", "homework"); err != nil {
		t.Fatalf("DeleteChannel failed: %v", err)
	}
	if err := dir.DeleteChannel(ctx, "class-1", "homework"); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("second DeleteChannel error = %v, want ErrNotFound", err)
	}

	channels, _ = dir.ListChannels(ctx, "class-1")
	for _, ch := range channels {
		if ch.ID == "homework" {
			t.Error("homework should be deleted")
		}
	}
}
