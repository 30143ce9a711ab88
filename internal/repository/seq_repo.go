package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parley-im/parley/internal/entity"
	"github.com/parley-im/parley/pkg/constant"
)

// SeqRepo owns the per-conversation sequence counter. Allocation is a
// single Redis INCR, so it stays linearized across gateway instances;
// the seq_conversations table is the durable shadow used for reseeding.
type SeqRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewSeqRepo creates a new SeqRepo
func NewSeqRepo(db *gorm.DB, rdb *redis.Client) *SeqRepo {
	return &SeqRepo{db: db, rdb: rdb}
}

func seqKey(conversationId string) string {
	return fmt.Sprintf(constant.RedisKeySeqConversation(), conversationId)
}

// AllocSeq allocates the next sequence number for a conversation.
// When the counter key is missing (fresh conversation or Redis restart)
// it is seeded from the durable max before the increment; the unique
// index on (conversation_id, seq) guards the residual race.
func (r *SeqRepo) AllocSeq(ctx context.Context, conversationId string) (int64, error) {
	key := seqKey(conversationId)

	exists, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		if err := r.seedCounter(ctx, conversationId); err != nil {
			return 0, err
		}
	}

	return r.rdb.Incr(ctx, key).Result()
}

// seedCounter initializes the Redis counter from the durable shadow.
// SetNX keeps a concurrent seeder from clobbering a live counter.
func (r *SeqRepo) seedCounter(ctx context.Context, conversationId string) error {
	var seqConv entity.SeqConversation
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationId).First(&seqConv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // INCR starts the counter at 1
		}
		return err
	}

	return r.rdb.SetNX(ctx, seqKey(conversationId), seqConv.MaxSeq, 0).Err()
}

// ResetCounter forces the Redis counter to at least maxSeq, used when a
// duplicate-seq violation reveals a stale counter
func (r *SeqRepo) ResetCounter(ctx context.Context, conversationId string, maxSeq int64) error {
	key := seqKey(conversationId)
	cur, err := r.rdb.Get(ctx, key).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if errors.Is(err, redis.Nil) || cur < maxSeq {
		return r.rdb.Set(ctx, key, maxSeq, 0).Err()
	}
	return nil
}

// GetMaxSeq gets the current max sequence for a conversation
func (r *SeqRepo) GetMaxSeq(ctx context.Context, conversationId string) (int64, error) {
	seq, err := r.rdb.Get(ctx, seqKey(conversationId)).Int64()
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}

	// Fall back to the durable shadow
	var seqConv entity.SeqConversation
	err = r.db.WithContext(ctx).Where("conversation_id = ?", conversationId).First(&seqConv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}

	return seqConv.MaxSeq, nil
}

// SyncSeqWithTx writes the allocated sequence to the durable shadow inside
// the message-persist transaction, so the shadow never lags a committed send
func (r *SeqRepo) SyncSeqWithTx(ctx context.Context, tx *gorm.DB, conversationId string, maxSeq int64) error {
	seqConv := &entity.SeqConversation{
		ConversationId: conversationId,
		MaxSeq:         maxSeq,
	}

	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"max_seq": gorm.Expr("GREATEST(max_seq, ?)", maxSeq),
		}),
	}).Create(seqConv).Error
}

// ReconcileCounters walks the durable shadows and repairs any Redis counter
// that lags them, e.g. after a Redis flush. Run periodically from cron.
func (r *SeqRepo) ReconcileCounters(ctx context.Context) (int, error) {
	var shadows []*entity.SeqConversation
	if err := r.db.WithContext(ctx).Find(&shadows).Error; err != nil {
		return 0, err
	}

	repaired := 0
	for _, s := range shadows {
		cur, err := r.rdb.Get(ctx, seqKey(s.ConversationId)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return repaired, err
		}
		if errors.Is(err, redis.Nil) || cur < s.MaxSeq {
			if err := r.rdb.Set(ctx, seqKey(s.ConversationId), s.MaxSeq, 0).Err(); err != nil {
				return repaired, err
			}
			repaired++
		}
	}
	return repaired, nil
}
