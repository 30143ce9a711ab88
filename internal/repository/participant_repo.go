package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parley-im/parley/internal/entity"
)

// ParticipantRepo is the repository for conversation membership operations.
// It is the durable truth for room membership; in-memory rooms are only a
// delivery optimization.
type ParticipantRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewParticipantRepo creates a new ParticipantRepo
func NewParticipantRepo(db *gorm.DB, rdb *redis.Client) *ParticipantRepo {
	return &ParticipantRepo{db: db, rdb: rdb}
}

// Create creates a membership record
func (r *ParticipantRepo) Create(ctx context.Context, tx *gorm.DB, p *entity.Participant) error {
	now := entity.NowUnixMilli()
	if p.JoinedAt == 0 {
		p.JoinedAt = now
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return tx.WithContext(ctx).Create(p).Error
}

// GetActive gets the active membership record for a user in a conversation,
// nil when the user is not an active participant
func (r *ParticipantRepo) GetActive(ctx context.Context, conversationId, userId string) (*entity.Participant, error) {
	var p entity.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationId, userId, true).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Get gets the membership record regardless of active state
func (r *ParticipantRepo) Get(ctx context.Context, conversationId, userId string) (*entity.Participant, error) {
	var p entity.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListActive lists all active participants of a conversation
func (r *ParticipantRepo) ListActive(ctx context.Context, conversationId string) ([]*entity.Participant, error) {
	var parts []*entity.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_active = ?", conversationId, true).
		Order("joined_at ASC").
		Find(&parts).Error
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// ListActiveUserIds lists the user ids of all active participants
func (r *ParticipantRepo) ListActiveUserIds(ctx context.Context, conversationId string) ([]string, error) {
	var userIds []string
	err := r.db.WithContext(ctx).
		Model(&entity.Participant{}).
		Where("conversation_id = ? AND is_active = ?", conversationId, true).
		Pluck("user_id", &userIds).Error
	if err != nil {
		return nil, err
	}
	return userIds, nil
}

// Reactivate re-activates a previously left participant
func (r *ParticipantRepo) Reactivate(ctx context.Context, tx *gorm.DB, conversationId, userId, role string, perms entity.ParticipantPermissions) error {
	return tx.WithContext(ctx).
		Model(&entity.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Updates(map[string]interface{}{
			"is_active":             true,
			"left_at":               0,
			"joined_at":             entity.NowUnixMilli(),
			"role":                  role,
			"can_send_messages":     perms.CanSendMessages,
			"can_invite_users":      perms.CanInviteUsers,
			"can_edit_conversation": perms.CanEditConversation,
			"can_delete_messages":   perms.CanDeleteMessages,
			"updated_at":            entity.NowUnixMilli(),
		}).Error
}

// Deactivate soft-removes a participant, preserving history attribution
func (r *ParticipantRepo) Deactivate(ctx context.Context, conversationId, userId string) error {
	now := entity.NowUnixMilli()
	return r.db.WithContext(ctx).
		Model(&entity.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationId, userId, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"left_at":    now,
			"updated_at": now,
		}).Error
}

// AdvanceReadPointer moves the participant's read pointer forward. The
// last_read_seq guard makes the write monotone: calls carrying an older
// message are no-ops, so the pointer never regresses.
func (r *ParticipantRepo) AdvanceReadPointer(ctx context.Context, conversationId, userId, messageId string, seq, readAt int64) error {
	return r.db.WithContext(ctx).
		Model(&entity.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND last_read_seq < ?", conversationId, userId, seq).
		Updates(map[string]interface{}{
			"last_read_at":         readAt,
			"last_read_message_id": messageId,
			"last_read_seq":        seq,
			"updated_at":           entity.NowUnixMilli(),
		}).Error
}

// Roster returns the active participant roster joined with profile metadata
func (r *ParticipantRepo) Roster(ctx context.Context, conversationId string) ([]*entity.ParticipantInfo, error) {
	var roster []*entity.ParticipantInfo
	err := r.db.WithContext(ctx).
		Table("participants p").
		Select(`
			p.user_id,
			COALESCE(pr.username, '') as username,
			COALESCE(pr.display_name, '') as display_name,
			COALESCE(pr.avatar, '') as avatar,
			COALESCE(pr.status, '') as status,
			p.role,
			p.last_read_at
		`).
		Joins("LEFT JOIN profiles pr ON pr.user_id = p.user_id").
		Where("p.conversation_id = ? AND p.is_active = ?", conversationId, true).
		Order("p.joined_at ASC").
		Scan(&roster).Error
	if err != nil {
		return nil, err
	}
	return roster, nil
}

// UpsertOnJoin creates or reactivates a membership in one statement,
// used when adding participants in bulk at conversation creation
func (r *ParticipantRepo) UpsertOnJoin(ctx context.Context, tx *gorm.DB, p *entity.Participant) error {
	now := entity.NowUnixMilli()
	if p.JoinedAt == 0 {
		p.JoinedAt = now
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_active":  true,
			"left_at":    0,
			"joined_at":  p.JoinedAt,
			"updated_at": now,
		}),
	}).Create(p).Error
}
