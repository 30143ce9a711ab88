package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/parley-im/parley/pkg/constant"
	"github.com/parley-im/parley/pkg/errcode"
)

// Attachment holds file metadata resolved by the external attachment
// service; this core never stores file bytes
type Attachment struct {
	Type         string `json:"type"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	Size         int64  `json:"size"`
	Url          string `json:"url"`
	ThumbnailUrl string `json:"thumbnail_url,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Duration     int    `json:"duration,omitempty"`
}

// AttachmentList is stored as a JSON column
type AttachmentList []Attachment

// Value implements driver.Valuer
func (a AttachmentList) Value() (driver.Value, error) {
	if len(a) == 0 {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *AttachmentList) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported attachment column type %T", value)
	}
}

// Message represents a message. Messages are soft-deleted so sequence
// continuity is preserved.
type Message struct {
	Id             string `json:"id" gorm:"column:id;primaryKey"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex:uk_conv_seq;uniqueIndex:uk_conv_sender_cmid"`
	SenderId       string `json:"sender_id" gorm:"column:sender_id;uniqueIndex:uk_conv_sender_cmid"`
	Content        string `json:"content" gorm:"column:content;type:text"`
	Type           string `json:"type" gorm:"column:type;default:text"`

	// ClientMessageId is the client-generated idempotency key, unique per
	// conversation+sender; Seq is unique and monotone per conversation.
	ClientMessageId string `json:"client_message_id" gorm:"column:client_message_id;uniqueIndex:uk_conv_sender_cmid"`
	Seq             int64  `json:"sequence_number" gorm:"column:seq;uniqueIndex:uk_conv_seq"`

	ReplyTo  string `json:"reply_to,omitempty" gorm:"column:reply_to"`
	ThreadId string `json:"thread_id,omitempty" gorm:"column:thread_id;index"`

	Attachments AttachmentList `json:"attachments,omitempty" gorm:"column:attachments;type:json"`
	Reactions   []*Reaction    `json:"reactions,omitempty" gorm:"-"`

	IsEdited bool  `json:"is_edited" gorm:"column:is_edited"`
	EditedAt int64 `json:"edited_at,omitempty" gorm:"column:edited_at"`

	IsDeleted bool   `json:"is_deleted" gorm:"column:is_deleted"`
	DeletedAt int64  `json:"deleted_at,omitempty" gorm:"column:deleted_at"`
	DeletedBy string `json:"deleted_by,omitempty" gorm:"column:deleted_by"`

	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
	UpdatedAt int64 `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// Reaction represents one (user, emoji) pair on a message,
// idempotent via the unique index
type Reaction struct {
	Id        int64  `json:"-" gorm:"column:id;primaryKey;autoIncrement"`
	MessageId string `json:"message_id" gorm:"column:message_id;uniqueIndex:uk_msg_user_emoji"`
	UserId    string `json:"user_id" gorm:"column:user_id;uniqueIndex:uk_msg_user_emoji"`
	Emoji     string `json:"emoji" gorm:"column:emoji;uniqueIndex:uk_msg_user_emoji"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
}

// TableName returns the table name for Reaction
func (Reaction) TableName() string {
	return "reactions"
}

// validMsgTypes is the accepted message type set
var validMsgTypes = map[string]bool{
	constant.MsgTypeText:   true,
	constant.MsgTypeImage:  true,
	constant.MsgTypeFile:   true,
	constant.MsgTypeSystem: true,
	constant.MsgTypeReply:  true,
	constant.MsgTypeThread: true,
}

// ValidateContent checks message content and type against protocol limits
func ValidateContent(content, msgType string) error {
	if content == "" {
		return errcode.ErrContentEmpty
	}
	if utf8.RuneCountInString(content) > constant.MaxContentLength {
		return errcode.ErrContentTooLong
	}
	if msgType != "" && !validMsgTypes[msgType] {
		return errcode.ErrInvalidMsgType
	}
	return nil
}

// ValidateEmoji checks a reaction emoji against protocol limits
func ValidateEmoji(emoji string) error {
	if emoji == "" || utf8.RuneCountInString(emoji) > constant.MaxEmojiLength {
		return errcode.ErrInvalidEmoji
	}
	return nil
}

// MessageInfo represents message info for API and socket payloads
type MessageInfo struct {
	Id              string         `json:"id"`
	ConversationId  string         `json:"conversation_id"`
	SenderId        string         `json:"sender_id"`
	Content         string         `json:"content"`
	Type            string         `json:"type"`
	ClientMessageId string         `json:"client_message_id,omitempty"`
	SequenceNumber  int64          `json:"sequence_number"`
	ReplyTo         string         `json:"reply_to,omitempty"`
	ThreadId        string         `json:"thread_id,omitempty"`
	Attachments     AttachmentList `json:"attachments,omitempty"`
	Reactions       []*Reaction    `json:"reactions,omitempty"`
	IsEdited        bool           `json:"is_edited"`
	EditedAt        int64          `json:"edited_at,omitempty"`
	IsDeleted       bool           `json:"is_deleted"`
	CreatedAt       int64          `json:"created_at"`
}

// ToMessageInfo converts Message to MessageInfo. Deleted messages keep
// their slot in the sequence but their content is redacted.
func (m *Message) ToMessageInfo() *MessageInfo {
	info := &MessageInfo{
		Id:              m.Id,
		ConversationId:  m.ConversationId,
		SenderId:        m.SenderId,
		Content:         m.Content,
		Type:            m.Type,
		ClientMessageId: m.ClientMessageId,
		SequenceNumber:  m.Seq,
		ReplyTo:         m.ReplyTo,
		ThreadId:        m.ThreadId,
		Attachments:     m.Attachments,
		Reactions:       m.Reactions,
		IsEdited:        m.IsEdited,
		EditedAt:        m.EditedAt,
		IsDeleted:       m.IsDeleted,
		CreatedAt:       m.CreatedAt,
	}
	if m.IsDeleted {
		info.Content = ""
		info.Attachments = nil
	}
	return info
}
