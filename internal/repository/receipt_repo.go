package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parley-im/parley/internal/entity"
)

// ReceiptRepo is the repository for read receipts
type ReceiptRepo struct {
	db *gorm.DB
}

// NewReceiptRepo creates a new ReceiptRepo
func NewReceiptRepo(db *gorm.DB) *ReceiptRepo {
	return &ReceiptRepo{db: db}
}

// Upsert records that a user read a message. The (message_id, user_id)
// key makes repeated calls idempotent.
func (r *ReceiptRepo) Upsert(ctx context.Context, receipt *entity.ReadReceipt) error {
	now := entity.NowUnixMilli()
	receipt.CreatedAt = now
	receipt.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"read_at":    receipt.ReadAt,
			"updated_at": now,
		}),
	}).Create(receipt).Error
}

// ListForMessage lists all receipts of a message
func (r *ReceiptRepo) ListForMessage(ctx context.Context, messageId string) ([]*entity.ReadReceipt, error) {
	var receipts []*entity.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageId).
		Order("read_at ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}
