package gateway

import (
	"encoding/json"

	"github.com/parley-im/parley/internal/entity"
)

// Frame is the wire envelope for every socket message in both directions:
// a named event plus its JSON payload
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinConversationReq represents join_conversation request data. A client
// that already holds history passes its cursor to get the missed backlog
// pushed right after the join.
type JoinConversationReq struct {
	ConversationId string `json:"conversation_id"`
	Cursor         *int64 `json:"cursor,omitempty"`
}

// LeaveConversationReq represents leave_conversation request data
type LeaveConversationReq struct {
	ConversationId string `json:"conversation_id"`
}

// SendMessageReq represents send_message request data
type SendMessageReq struct {
	ConversationId  string                `json:"conversation_id"`
	Content         string                `json:"content"`
	Type            string                `json:"type,omitempty"`
	ClientMessageId string                `json:"client_message_id"`
	ReplyTo         string                `json:"reply_to,omitempty"`
	ThreadId        string                `json:"thread_id,omitempty"`
	Attachments     entity.AttachmentList `json:"attachments,omitempty"`
}

// TypingReq represents typing_start / typing_stop request data
type TypingReq struct {
	ConversationId string `json:"conversation_id"`
}

// TypingPayload is the typing broadcast body
type TypingPayload struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	Username       string `json:"username,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

// MarkReadReq represents mark_read request data
type MarkReadReq struct {
	ConversationId string `json:"conversation_id"`
	MessageId      string `json:"message_id"`
	ReadAt         int64  `json:"read_at,omitempty"`
}

// ReactionReq represents add_reaction / remove_reaction request data
type ReactionReq struct {
	MessageId string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// SyncMessagesReq represents sync_messages request data
type SyncMessagesReq struct {
	ConversationId string `json:"conversation_id"`
	Cursor         int64  `json:"cursor,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// ConnectedPayload is sent once after a successful handshake
type ConnectedPayload struct {
	UserId     string   `json:"user_id"`
	ConnId     string   `json:"conn_id"`
	ServerTime int64    `json:"server_time"`
	Features   []string `json:"features"`
}

// ErrorPayload is the error event body. Event names the client request
// that failed, when known.
type ErrorPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// EncodeFrame builds a wire frame from an event name and payload
func EncodeFrame(event string, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(&Frame{Event: event, Data: data})
}

// DecodeFrame parses a wire frame
func DecodeFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, ErrInvalidProtocol
	}
	if f.Event == "" {
		return nil, ErrInvalidProtocol
	}
	return &f, nil
}
