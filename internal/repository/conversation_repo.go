package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/parley-im/parley/internal/entity"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB, rdb *redis.Client) *ConversationRepo {
	return &ConversationRepo{db: db, rdb: rdb}
}

// Create creates a new conversation
func (r *ConversationRepo) Create(ctx context.Context, tx *gorm.DB, conv *entity.Conversation) error {
	now := entity.NowUnixMilli()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	return tx.WithContext(ctx).Create(conv).Error
}

// GetById gets a conversation by id
func (r *ConversationRepo) GetById(ctx context.Context, conversationId string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", conversationId).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetByDirectKey finds an existing direct conversation for a user pair
func (r *ConversationRepo) GetByDirectKey(ctx context.Context, directKey string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("direct_key = ?", directKey).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// AdvanceLastMessage points the conversation at a newly accepted message.
// The guard on last_message_seq keeps the pointer at the highest-seq message
// even when concurrent sends commit out of order.
func (r *ConversationRepo) AdvanceLastMessage(ctx context.Context, tx *gorm.DB, conversationId, messageId string, seq, sentAt int64) error {
	return tx.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ? AND last_message_seq < ?", conversationId, seq).
		Updates(map[string]interface{}{
			"last_message_id":  messageId,
			"last_message_at":  sentAt,
			"last_message_seq": seq,
			"updated_at":       entity.NowUnixMilli(),
		}).Error
}

// Update updates conversation fields
func (r *ConversationRepo) Update(ctx context.Context, conversationId string, updates map[string]interface{}) error {
	updates["updated_at"] = entity.NowUnixMilli()
	return r.db.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ?", conversationId).
		Updates(updates).Error
}

// ListForUser lists the conversations a user actively participates in,
// joined with the caller's read state
func (r *ConversationRepo) ListForUser(ctx context.Context, userId string) ([]*entity.ConversationWithReadState, error) {
	var results []*entity.ConversationWithReadState

	err := r.db.WithContext(ctx).
		Table("conversations c").
		Select(`
			c.*,
			COALESCE(sc.max_seq, 0) as max_seq,
			COALESCE(p.last_read_seq, 0) as read_seq,
			GREATEST(0, COALESCE(sc.max_seq, 0) - COALESCE(p.last_read_seq, 0)) as unread_count
		`).
		Joins("INNER JOIN participants p ON p.conversation_id = c.id AND p.user_id = ? AND p.is_active = ?", userId, true).
		Joins("LEFT JOIN seq_conversations sc ON sc.conversation_id = c.id").
		Where("c.is_active = ?", true).
		Order("c.last_message_at DESC").
		Scan(&results).Error

	if err != nil {
		return nil, err
	}
	return results, nil
}
