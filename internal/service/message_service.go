package service

import (
	"context"
	"errors"

	"github.com/parley-im/parley/internal/entity"
	"github.com/parley-im/parley/internal/repository"
	"github.com/parley-im/parley/pkg/constant"
	"github.com/parley-im/parley/pkg/errcode"
	"github.com/parley-im/parley/pkg/idgen"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// MessageService handles message-related business logic
type MessageService struct {
	msgRepo  MessageStore
	seqRepo  SeqStore
	convRepo ConversationStore
	partRepo ParticipantStore
	repos    TxRunner

	broadcaster Broadcaster
}

// NewMessageService creates a new MessageService
func NewMessageService(repos *repository.Repositories) *MessageService {
	return &MessageService{
		msgRepo:  repos.Message,
		seqRepo:  repos.Seq,
		convRepo: repos.Conversation,
		partRepo: repos.Participant,
		repos:    repos,
	}
}

// SetBroadcaster sets the delivery broadcaster
func (s *MessageService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ConversationId  string                `json:"conversation_id"`
	Content         string                `json:"content"`
	Type            string                `json:"type,omitempty"`
	ClientMessageId string                `json:"client_message_id"`
	ReplyTo         string                `json:"reply_to,omitempty"`
	ThreadId        string                `json:"thread_id,omitempty"`
	Attachments     entity.AttachmentList `json:"attachments,omitempty"`

	// ConnId identifies the originating connection; it is excluded from
	// the message_received broadcast because the sender gets message_ack.
	ConnId string `json:"-"`
}

// SendMessage validates, sequences, persists and broadcasts one message.
// Retried client sends with the same client_message_id return the
// original message without allocating a new sequence number.
func (s *MessageService) SendMessage(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.Message, error) {
	if req.ConversationId == "" {
		return nil, errcode.ErrInvalidParam
	}
	if req.ClientMessageId == "" {
		return nil, errcode.ErrClientMsgIdMissing
	}
	if err := entity.ValidateContent(req.Content, req.Type); err != nil {
		return nil, err
	}

	conv, err := s.convRepo.GetById(ctx, req.ConversationId)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", req.ConversationId).Msg("load conversation failed")
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	if !conv.IsActive {
		return nil, errcode.ErrConversationClosed
	}

	part, err := s.partRepo.GetActive(ctx, req.ConversationId, senderId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	if part == nil {
		// membership is not disclosed to non-members
		return nil, errcode.ErrConvNotFound
	}
	if !part.Permissions.CanSendMessages {
		return nil, errcode.ErrSendNotAllowed
	}
	if len(req.Attachments) > 0 && !conv.Settings.AllowFileUploads {
		return nil, errcode.ErrUploadsDisabled
	}

	// Idempotency check before touching the sequencer
	existing, err := s.msgRepo.GetByClientMessageId(ctx, req.ConversationId, senderId, req.ClientMessageId)
	if err != nil {
		log.Error().Err(err).Msg("idempotency check failed")
		return nil, errcode.ErrInternalServer
	}
	if existing != nil {
		log.Debug().Str("client_message_id", req.ClientMessageId).Msg("duplicate send, returning original")
		return existing, nil
	}

	msg, err := s.storeWithSeq(ctx, senderId, req)
	if err != nil {
		return nil, err
	}

	// The sender has implicitly read their own message
	if err := s.partRepo.AdvanceReadPointer(ctx, msg.ConversationId, senderId, msg.Id, msg.Seq, msg.CreatedAt); err != nil {
		log.Warn().Err(err).Str("message_id", msg.Id).Msg("advance sender read pointer failed")
	}

	s.broadcastReceived(ctx, msg, req.ConnId)
	return msg, nil
}

// storeWithSeq allocates a sequence number and persists the message in one
// transaction. A duplicate-key hit on (conversation_id, seq) means the
// redis counter lagged the store; the counter is reseeded from the store
// maximum and the allocation retried a bounded number of times.
func (s *MessageService) storeWithSeq(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.Message, error) {
	for attempt := 1; attempt <= constant.SeqRetryAttempts; attempt++ {
		seq, err := s.seqRepo.AllocSeq(ctx, req.ConversationId)
		if err != nil {
			return nil, errcode.ErrSeqAllocFailed.Wrap(err)
		}

		msgId, err := idgen.NextID()
		if err != nil {
			return nil, errcode.ErrInternalServer.Wrap(err)
		}

		now := entity.NowUnixMilli()
		msgType := req.Type
		if msgType == "" {
			msgType = constant.MsgTypeText
		}
		msg := &entity.Message{
			Id:              msgId,
			ConversationId:  req.ConversationId,
			SenderId:        senderId,
			Content:         req.Content,
			Type:            msgType,
			ClientMessageId: req.ClientMessageId,
			Seq:             seq,
			ReplyTo:         req.ReplyTo,
			ThreadId:        req.ThreadId,
			Attachments:     req.Attachments,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
			if err := s.msgRepo.Create(ctx, tx, msg); err != nil {
				return err
			}
			if err := s.seqRepo.SyncSeqWithTx(ctx, tx, req.ConversationId, seq); err != nil {
				return err
			}
			return s.convRepo.AdvanceLastMessage(ctx, tx, req.ConversationId, msg.Id, seq, now)
		})
		if err == nil {
			return msg, nil
		}

		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent retry of the same client send may have won the
			// idempotency index instead of the seq index
			dup, derr := s.msgRepo.GetByClientMessageId(ctx, req.ConversationId, senderId, req.ClientMessageId)
			if derr == nil && dup != nil {
				return dup, nil
			}

			maxSeq, merr := s.msgRepo.MaxSeq(ctx, req.ConversationId)
			if merr != nil {
				return nil, errcode.ErrSendFailed.Wrap(merr)
			}
			if rerr := s.seqRepo.ResetCounter(ctx, req.ConversationId, maxSeq); rerr != nil {
				return nil, errcode.ErrSendFailed.Wrap(rerr)
			}
			log.Warn().
				Str("conversation_id", req.ConversationId).
				Int64("stale_seq", seq).
				Int64("store_max", maxSeq).
				Int("attempt", attempt).
				Msg("seq counter lagged store, reseeded and retrying")
			continue
		}

		return nil, errcode.ErrSendFailed.Wrap(err)
	}
	return nil, errcode.ErrSendFailed
}

func (s *MessageService) broadcastReceived(ctx context.Context, msg *entity.Message, excludeConnId string) {
	if s.broadcaster == nil {
		return
	}
	roster, err := s.partRepo.Roster(ctx, msg.ConversationId)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", msg.ConversationId).Msg("load roster for broadcast failed")
	}
	s.broadcaster.BroadcastToConversation(ctx, msg.ConversationId, constant.EventMessageReceived, &MessageReceivedPayload{
		Message:      msg.ToMessageInfo(),
		Participants: roster,
	}, excludeConnId)
}

// EditMessage replaces the content of the caller's own message
func (s *MessageService) EditMessage(ctx context.Context, userId, messageId, content string) (*entity.Message, error) {
	if err := entity.ValidateContent(content, ""); err != nil {
		return nil, err
	}

	msg, err := s.msgRepo.GetById(ctx, messageId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	if msg == nil || msg.IsDeleted {
		return nil, errcode.ErrMessageNotFound
	}
	if msg.SenderId != userId {
		return nil, errcode.ErrNotMessageOwner
	}

	if err := s.msgRepo.MarkEdited(ctx, messageId, content); err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = entity.NowUnixMilli()

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToConversation(ctx, msg.ConversationId, constant.EventMessageEdited, &MessageEditedPayload{
			MessageId:      msg.Id,
			ConversationId: msg.ConversationId,
			Content:        msg.Content,
			EditedAt:       msg.EditedAt,
		}, "")
	}
	return msg, nil
}

// DeleteMessage soft-deletes a message. The sequence slot survives so
// sync pagination stays gapless; only the content is redacted.
// Senders may delete their own messages, moderators anyone's.
func (s *MessageService) DeleteMessage(ctx context.Context, userId, messageId string) error {
	msg, err := s.msgRepo.GetById(ctx, messageId)
	if err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}
	if msg == nil || msg.IsDeleted {
		return errcode.ErrMessageNotFound
	}

	if msg.SenderId != userId {
		part, err := s.partRepo.GetActive(ctx, msg.ConversationId, userId)
		if err != nil {
			return errcode.ErrInternalServer.Wrap(err)
		}
		if part == nil {
			return errcode.ErrMessageNotFound
		}
		if !part.CanModerate() && !part.Permissions.CanDeleteMessages {
			return errcode.ErrNoPermission
		}
	}

	if err := s.msgRepo.SoftDelete(ctx, messageId, userId); err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToConversation(ctx, msg.ConversationId, constant.EventMessageDeleted, &MessageDeletedPayload{
			MessageId:      msg.Id,
			ConversationId: msg.ConversationId,
			DeletedBy:      userId,
			DeletedAt:      entity.NowUnixMilli(),
		}, "")
	}
	return nil
}

// AddReaction records a (user, emoji) reaction on a message. Repeats of
// the same pair are absorbed by the unique index.
func (s *MessageService) AddReaction(ctx context.Context, userId, messageId, emoji string) error {
	msg, conv, err := s.reactionTarget(ctx, userId, messageId)
	if err != nil {
		return err
	}
	if !conv.Settings.AllowReactions {
		return errcode.ErrReactionsDisabled
	}
	if err := entity.ValidateEmoji(emoji); err != nil {
		return err
	}

	if err := s.msgRepo.AddReaction(ctx, &entity.Reaction{
		MessageId: messageId,
		UserId:    userId,
		Emoji:     emoji,
	}); err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}

	s.broadcastReaction(ctx, constant.EventReactionAdded, msg, userId, emoji)
	return nil
}

// RemoveReaction removes the caller's (user, emoji) reaction if present
func (s *MessageService) RemoveReaction(ctx context.Context, userId, messageId, emoji string) error {
	msg, _, err := s.reactionTarget(ctx, userId, messageId)
	if err != nil {
		return err
	}
	if err := entity.ValidateEmoji(emoji); err != nil {
		return err
	}

	if err := s.msgRepo.RemoveReaction(ctx, messageId, userId, emoji); err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}

	s.broadcastReaction(ctx, constant.EventReactionRemoved, msg, userId, emoji)
	return nil
}

// reactionTarget loads the message and checks the caller is an active
// participant of its conversation
func (s *MessageService) reactionTarget(ctx context.Context, userId, messageId string) (*entity.Message, *entity.Conversation, error) {
	msg, err := s.msgRepo.GetById(ctx, messageId)
	if err != nil {
		return nil, nil, errcode.ErrInternalServer.Wrap(err)
	}
	if msg == nil || msg.IsDeleted {
		return nil, nil, errcode.ErrMessageNotFound
	}

	part, err := s.partRepo.GetActive(ctx, msg.ConversationId, userId)
	if err != nil {
		return nil, nil, errcode.ErrInternalServer.Wrap(err)
	}
	if part == nil {
		return nil, nil, errcode.ErrConvNotFound
	}

	conv, err := s.convRepo.GetById(ctx, msg.ConversationId)
	if err != nil {
		return nil, nil, errcode.ErrInternalServer.Wrap(err)
	}
	if conv == nil {
		return nil, nil, errcode.ErrConvNotFound
	}
	return msg, conv, nil
}

func (s *MessageService) broadcastReaction(ctx context.Context, event string, msg *entity.Message, userId, emoji string) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastToConversation(ctx, msg.ConversationId, event, &ReactionPayload{
		MessageId:      msg.Id,
		ConversationId: msg.ConversationId,
		UserId:         userId,
		Emoji:          emoji,
		Timestamp:      entity.NowUnixMilli(),
	}, "")
}
