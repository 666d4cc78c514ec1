package classchat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/criterio"
)

// MinCodeLength is the shortest accepted class security code.
const MinCodeLength = 4

// CreateClassInput describes a new class and its first admin.
type CreateClassInput struct {
	Name        string
	Code        string
	AdminName   string
	AdminAvatar string
}

// Validate checks the input field by field.
func (in CreateClassInput) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if strings.TrimSpace(in.Name) == "" {
		errs = errs.Append("name", errors.New("is required"))
	}
	if len(in.Code) < MinCodeLength {
		errs = errs.Append("code", fmt.Errorf("must be at least %d characters", MinCodeLength))
	}
	if strings.TrimSpace(in.AdminName) == "" {
		errs = errs.Append("admin", errors.New("is required"))
	}
	if err := chat.ValidateAvatar(in.AdminAvatar); err != nil {
		errs = errs.Append("avatar", err)
	}

	return errs.ToError()
}

// JoinInput describes a user joining an existing class.
type JoinInput struct {
	Code   string
	Name   string
	Avatar string
}

// Validate checks the input field by field.
func (in JoinInput) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if in.Code == "" {
		errs = errs.Append("code", errors.New("is required"))
	}
	if strings.TrimSpace(in.Name) == "" {
		errs = errs.Append("name", errors.New("is required"))
	}
	if err := chat.ValidateAvatar(in.Avatar); err != nil {
		errs = errs.Append("avatar", err)
	}

	return errs.ToError()
}

// CreateClass registers a class, provisions its default channels, and
// creates its first admin. Returns the admin's session.
func (s *Service) CreateClass(ctx context.Context, in CreateClassInput) (chat.Session, error) {
	if err := in.Validate(); err != nil {
		return chat.Session{}, err
	}

	class, err := s.deps.Directory.CreateClass(ctx, strings.TrimSpace(in.Name), in.Code)
	if err != nil {
		return chat.Session{}, fmt.Errorf("create class: %w", err)
	}

	if err := s.EnsureDefaultChannels(ctx, class.ID); err != nil {
		return chat.Session{}, err
	}

	user, err := s.deps.Directory.CreateUser(ctx, class.ID, strings.TrimSpace(in.AdminName), in.AdminAvatar)
	if err != nil {
		return chat.Session{}, fmt.Errorf("create admin user: %w", err)
	}

	user.Admin = true
	if err := s.deps.Directory.SaveUser(ctx, user); err != nil {
		return chat.Session{}, fmt.Errorf("grant admin: %w", err)
	}

	s.log.Info().Str("class_id", class.ID).Str("user_id", user.ID).Msg("class created")
	return chat.Session{ClassID: class.ID, User: user}, nil
}

// Join resolves the class by security code and registers a new user in it.
func (s *Service) Join(ctx context.Context, in JoinInput) (chat.Session, error) {
	if err := in.Validate(); err != nil {
		return chat.Session{}, err
	}

	class, err := s.deps.Directory.ResolveClass(ctx, in.Code)
	if err != nil {
		return chat.Session{}, fmt.Errorf("resolve class: %w", err)
	}

	user, err := s.deps.Directory.CreateUser(ctx, class.ID, strings.TrimSpace(in.Name), in.Avatar)
	if err != nil {
		return chat.Session{}, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Str("class_id", class.ID).Str("user_id", user.ID).Msg("user joined")
	return chat.Session{ClassID: class.ID, User: user}, nil
}

// EnsureDefaultChannels inserts any default channel missing from the class.
func (s *Service) EnsureDefaultChannels(ctx context.Context, classID string) error {
	for _, ch := range chat.DefaultChannels(classID) {
		err := s.deps.Catalog.InsertChannel(ctx, ch)
		if err != nil && !errors.Is(err, chat.ErrDuplicateChannelID) {
			return fmt.Errorf("insert default channel %s: %w", ch.ID, err)
		}
	}
	return nil
}

// SetAvatar changes the session user's avatar glyph and returns the updated
// session.
func (s *Service) SetAvatar(ctx context.Context, sess chat.Session, avatar string) (chat.Session, error) {
	if !sess.Authenticated() {
		return sess, chat.ErrNotAuthenticated
	}
	if err := chat.ValidateAvatar(avatar); err != nil {
		return sess, criterio.NewFieldErrors("avatar", err)
	}

	user, err := s.deps.Directory.GetUser(ctx, sess.User.ID)
	if err != nil {
		return sess, fmt.Errorf("get user: %w", err)
	}

	user.Avatar = avatar
	if err := s.deps.Directory.SaveUser(ctx, user); err != nil {
		return sess, fmt.Errorf("save user: %w", err)
	}

	s.subscriber.authors.forget(user.ID)
	sess.User = user
	return sess, nil
}

// Refresh reloads the session user from the directory so admin flags and
// avatar changes made elsewhere are picked up.
func (s *Service) Refresh(ctx context.Context, sess chat.Session) (chat.Session, error) {
	if !sess.Authenticated() {
		return sess, chat.ErrNotAuthenticated
	}

	user, err := s.deps.Directory.GetUser(ctx, sess.User.ID)
	if err != nil {
		return sess, fmt.Errorf("get user: %w", err)
	}

	sess.User = user
	return sess, nil
}
