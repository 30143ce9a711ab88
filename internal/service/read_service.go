package service

import (
	"context"

	"github.com/parley-im/parley/internal/entity"
	"github.com/parley-im/parley/internal/repository"
	"github.com/parley-im/parley/pkg/constant"
	"github.com/parley-im/parley/pkg/errcode"
	"github.com/rs/zerolog/log"
)

// ReadService tracks per-user read state
type ReadService struct {
	msgRepo     MessageStore
	partRepo    ParticipantStore
	receiptRepo ReceiptStore

	broadcaster Broadcaster
}

// NewReadService creates a new ReadService
func NewReadService(repos *repository.Repositories) *ReadService {
	return &ReadService{
		msgRepo:     repos.Message,
		partRepo:    repos.Participant,
		receiptRepo: repos.Receipt,
	}
}

// SetBroadcaster sets the delivery broadcaster
func (s *ReadService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// MarkReadRequest represents a mark_read request
type MarkReadRequest struct {
	ConversationId string `json:"conversation_id"`
	MessageId      string `json:"message_id"`
	ReadAt         int64  `json:"read_at,omitempty"`
}

// MarkRead records that userId has read the given message. The per-message
// receipt is an idempotent upsert; the participant read pointer only ever
// moves forward, so a stale mark for an older message leaves it untouched.
func (s *ReadService) MarkRead(ctx context.Context, userId string, req *MarkReadRequest) error {
	if req.ConversationId == "" || req.MessageId == "" {
		return errcode.ErrInvalidParam
	}

	part, err := s.partRepo.GetActive(ctx, req.ConversationId, userId)
	if err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}
	if part == nil {
		return errcode.ErrConvNotFound
	}

	msg, err := s.msgRepo.GetById(ctx, req.MessageId)
	if err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}
	if msg == nil || msg.ConversationId != req.ConversationId {
		return errcode.ErrMessageNotFound
	}

	readAt := req.ReadAt
	if readAt <= 0 {
		readAt = entity.NowUnixMilli()
	}

	if err := s.receiptRepo.Upsert(ctx, &entity.ReadReceipt{
		MessageId: msg.Id,
		UserId:    userId,
		ReadAt:    readAt,
	}); err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}

	if err := s.partRepo.AdvanceReadPointer(ctx, req.ConversationId, userId, msg.Id, msg.Seq, readAt); err != nil {
		log.Warn().Err(err).Str("message_id", msg.Id).Str("user_id", userId).Msg("advance read pointer failed")
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToConversation(ctx, req.ConversationId, constant.EventReadReceipt, &ReadReceiptPayload{
			MessageId:      msg.Id,
			ConversationId: req.ConversationId,
			UserId:         userId,
			ReadAt:         readAt,
		}, "")
	}
	return nil
}

// ListReceipts returns all read receipts for a message the caller can see
func (s *ReadService) ListReceipts(ctx context.Context, userId, messageId string) ([]*entity.ReadReceipt, error) {
	msg, err := s.msgRepo.GetById(ctx, messageId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	if msg == nil {
		return nil, errcode.ErrMessageNotFound
	}

	part, err := s.partRepo.GetActive(ctx, msg.ConversationId, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	if part == nil {
		return nil, errcode.ErrMessageNotFound
	}

	return s.receiptRepo.ListForMessage(ctx, messageId)
}
