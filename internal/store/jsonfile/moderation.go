package jsonfile

import (
	"context"
	"errors"

	"github.com/hay-kot/classchat/internal/core/chat"
)

// ModerationStore implements chat.ModerationStore on a KVStore. Mutes live
// under "mute/<class>/<user>" and blocks under "block/<class>".
type ModerationStore struct {
	kv *KVStore
}

// NewModerationStore creates a moderation store backed by the KV file at path.
func NewModerationStore(path string) *ModerationStore {
	return &ModerationStore{kv: NewKVStore(path)}
}

func mutePrefix(classID string) string {
	return "mute/" + classID + "/"
}

func muteKey(classID, userID string) string {
	return mutePrefix(classID) + userID
}

func blockKey(classID string) string {
	return "block/" + classID
}

func (s *ModerationStore) GetMute(ctx context.Context, classID, userID string) (chat.MuteRecord, error) {
	entry, err := s.kv.Get(ctx, muteKey(classID, userID))
	if err != nil {
		return chat.MuteRecord{}, err
	}

	var rec chat.MuteRecord
	if err := entry.Decode(&rec); err != nil {
		return chat.MuteRecord{}, err
	}
	return rec, nil
}

// SetMute stores rec, replacing any previous mute of the same user.
func (s *ModerationStore) SetMute(ctx context.Context, rec chat.MuteRecord) error {
	return s.kv.Set(ctx, muteKey(rec.ClassID, rec.UserID), rec)
}

// ClearMute removes a mute. Clearing a missing mute is not an error.
func (s *ModerationStore) ClearMute(ctx context.Context, classID, userID string) error {
	err := s.kv.Delete(ctx, muteKey(classID, userID))
	if errors.Is(err, chat.ErrNotFound) {
		return nil
	}
	return err
}

// ListMutes returns every stored mute of classID, expired ones included.
func (s *ModerationStore) ListMutes(ctx context.Context, classID string) ([]chat.MuteRecord, error) {
	entries, err := s.kv.List(ctx, mutePrefix(classID))
	if err != nil {
		return nil, err
	}

	mutes := make([]chat.MuteRecord, 0, len(entries))
	for _, entry := range entries {
		var rec chat.MuteRecord
		if err := entry.Decode(&rec); err != nil {
			return nil, err
		}
		mutes = append(mutes, rec)
	}
	return mutes, nil
}

func (s *ModerationStore) GetBlock(ctx context.Context, classID string) (chat.ClassBlock, error) {
	entry, err := s.kv.Get(ctx, blockKey(classID))
	if err != nil {
		return chat.ClassBlock{}, err
	}

	var block chat.ClassBlock
	if err := entry.Decode(&block); err != nil {
		return chat.ClassBlock{}, err
	}
	return block, nil
}

func (s *ModerationStore) SetBlock(ctx context.Context, block chat.ClassBlock) error {
	return s.kv.Set(ctx, blockKey(block.ClassID), block)
}

// ClearBlock removes the class block. Clearing a missing block is not an
// error.
func (s *ModerationStore) ClearBlock(ctx context.Context, classID string) error {
	err := s.kv.Delete(ctx, blockKey(classID))
	if errors.Is(err, chat.ErrNotFound) {
		return nil
	}
	return err
}
