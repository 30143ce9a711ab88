package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parley-im/parley/internal/entity"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB, rdb *redis.Client) *MessageRepo {
	return &MessageRepo{db: db, rdb: rdb}
}

// Create persists a new message. The unique index on (conversation_id, seq)
// rejects duplicate sequence numbers; callers treat gorm.ErrDuplicatedKey on
// this path as a sequence race.
func (r *MessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	now := entity.NowUnixMilli()
	if msg.CreatedAt == 0 {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	return tx.WithContext(ctx).Create(msg).Error
}

// GetById gets a message by id
func (r *MessageRepo) GetById(ctx context.Context, messageId string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).Where("id = ?", messageId).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// GetByClientMessageId gets a message by its idempotency key,
// scoped per conversation and sender
func (r *MessageRepo) GetByClientMessageId(ctx context.Context, conversationId, senderId, clientMessageId string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND sender_id = ? AND client_message_id = ?", conversationId, senderId, clientMessageId).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// ListAfterSeq lists non-deleted messages with seq greater than cursor,
// ascending. Callers pass limit+1 to probe for more pages.
func (r *MessageRepo) ListAfterSeq(ctx context.Context, conversationId string, cursor int64, limit int) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND seq > ? AND is_deleted = ?", conversationId, cursor, false).
		Order("seq ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkEdited updates message content in place and flags the edit
func (r *MessageRepo) MarkEdited(ctx context.Context, messageId, content string) error {
	now := entity.NowUnixMilli()
	return r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("id = ?", messageId).
		Updates(map[string]interface{}{
			"content":    content,
			"is_edited":  true,
			"edited_at":  now,
			"updated_at": now,
		}).Error
}

// SoftDelete flags a message deleted. The row and its seq survive so
// sequence continuity is preserved for syncing clients.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageId, deletedBy string) error {
	now := entity.NowUnixMilli()
	return r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("id = ?", messageId).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"deleted_by": deletedBy,
			"updated_at": now,
		}).Error
}

// AddReaction records a (user, emoji) pair. The unique index makes the
// insert idempotent: adding twice has no additional effect.
func (r *MessageRepo) AddReaction(ctx context.Context, reaction *entity.Reaction) error {
	reaction.CreatedAt = entity.NowUnixMilli()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}, {Name: "emoji"}},
		DoNothing: true,
	}).Create(reaction).Error
}

// RemoveReaction deletes a (user, emoji) pair; removing an absent pair is a no-op
func (r *MessageRepo) RemoveReaction(ctx context.Context, messageId, userId, emoji string) error {
	return r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageId, userId, emoji).
		Delete(&entity.Reaction{}).Error
}

// ListReactions lists reactions for a set of messages
func (r *MessageRepo) ListReactions(ctx context.Context, messageIds []string) ([]*entity.Reaction, error) {
	if len(messageIds) == 0 {
		return nil, nil
	}

	var reactions []*entity.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIds).
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

// MaxSeq returns the highest persisted seq in a conversation,
// used to reseed the counter after a sequence race
func (r *MessageRepo) MaxSeq(ctx context.Context, conversationId string) (int64, error) {
	var maxSeq int64
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ?", conversationId).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	return maxSeq, err
}
