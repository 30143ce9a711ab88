package service

import (
	"context"

	"github.com/parley-im/parley/internal/entity"
	"gorm.io/gorm"
)

// Narrow repository surfaces the services depend on. internal/repository
// satisfies all of them; tests substitute fakes.

// MessageStore persists and loads stored messages and their reactions.
type MessageStore interface {
	Create(ctx context.Context, tx *gorm.DB, msg *entity.Message) error
	GetById(ctx context.Context, messageId string) (*entity.Message, error)
	GetByClientMessageId(ctx context.Context, conversationId, senderId, clientMessageId string) (*entity.Message, error)
	MarkEdited(ctx context.Context, messageId, content string) error
	SoftDelete(ctx context.Context, messageId, deletedBy string) error
	AddReaction(ctx context.Context, reaction *entity.Reaction) error
	RemoveReaction(ctx context.Context, messageId, userId, emoji string) error
	MaxSeq(ctx context.Context, conversationId string) (int64, error)
}

// ParticipantStore answers membership and moves per-participant read pointers.
type ParticipantStore interface {
	GetActive(ctx context.Context, conversationId, userId string) (*entity.Participant, error)
	AdvanceReadPointer(ctx context.Context, conversationId, userId, messageId string, seq, readAt int64) error
	Roster(ctx context.Context, conversationId string) ([]*entity.ParticipantInfo, error)
}

// ConversationStore loads conversations and advances their last-message state.
type ConversationStore interface {
	GetById(ctx context.Context, conversationId string) (*entity.Conversation, error)
	AdvanceLastMessage(ctx context.Context, tx *gorm.DB, conversationId, messageId string, seq, sentAt int64) error
}

// SeqStore is the per-conversation sequence counter.
type SeqStore interface {
	AllocSeq(ctx context.Context, conversationId string) (int64, error)
	SyncSeqWithTx(ctx context.Context, tx *gorm.DB, conversationId string, maxSeq int64) error
	ResetCounter(ctx context.Context, conversationId string, maxSeq int64) error
}

// ReceiptStore persists per-message read receipts.
type ReceiptStore interface {
	Upsert(ctx context.Context, receipt *entity.ReadReceipt) error
	ListForMessage(ctx context.Context, messageId string) ([]*entity.ReadReceipt, error)
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}
