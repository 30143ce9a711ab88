package service

import (
	"context"

	"github.com/parley-im/parley/internal/entity"
)

// Broadcaster fans an event out to every live connection in a conversation
// room, optionally excluding the originating connection. Implementations
// must not block on slow consumers; delivery is at-least-once and transport
// order is not promised — clients reconcile with sequence numbers.
type Broadcaster interface {
	BroadcastToConversation(ctx context.Context, conversationId, event string, payload interface{}, excludeConnId string)
}

// MessageReceivedPayload is the message_received broadcast body
type MessageReceivedPayload struct {
	Message      *entity.MessageInfo       `json:"message"`
	Participants []*entity.ParticipantInfo `json:"participants"`
}

// MessageAckPayload is the message_ack body sent to the sender only
type MessageAckPayload struct {
	ClientMessageId string `json:"client_message_id"`
	ServerMessageId string `json:"server_message_id,omitempty"`
	SequenceNumber  int64  `json:"sequence_number,omitempty"`
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
}

// MessageEditedPayload is the message_edited broadcast body
type MessageEditedPayload struct {
	MessageId      string `json:"message_id"`
	ConversationId string `json:"conversation_id"`
	Content        string `json:"content"`
	EditedAt       int64  `json:"edited_at"`
}

// MessageDeletedPayload is the message_deleted broadcast body
type MessageDeletedPayload struct {
	MessageId      string `json:"message_id"`
	ConversationId string `json:"conversation_id"`
	DeletedBy      string `json:"deleted_by"`
	DeletedAt      int64  `json:"deleted_at"`
}

// ReadReceiptPayload is the read_receipt broadcast body
type ReadReceiptPayload struct {
	MessageId      string `json:"message_id"`
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	ReadAt         int64  `json:"read_at"`
}

// ReactionPayload is the reaction_added / reaction_removed broadcast body
type ReactionPayload struct {
	MessageId      string `json:"message_id"`
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	Emoji          string `json:"emoji"`
	Timestamp      int64  `json:"timestamp"`
}
