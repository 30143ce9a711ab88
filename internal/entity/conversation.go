package entity

// ConversationSettings holds per-conversation feature toggles,
// flattened into columns with an embedded prefix
type ConversationSettings struct {
	AllowInvites     bool `json:"allow_invites" gorm:"column:allow_invites;default:true"`
	AllowFileUploads bool `json:"allow_file_uploads" gorm:"column:allow_file_uploads;default:true"`
	AllowReactions   bool `json:"allow_reactions" gorm:"column:allow_reactions;default:true"`
	AllowThreads     bool `json:"allow_threads" gorm:"column:allow_threads;default:true"`
}

// DefaultConversationSettings returns the settings applied to new conversations
func DefaultConversationSettings() ConversationSettings {
	return ConversationSettings{
		AllowInvites:     true,
		AllowFileUploads: true,
		AllowReactions:   true,
		AllowThreads:     true,
	}
}

// Conversation represents a persistent container of participants and
// ordered messages
type Conversation struct {
	Id          string `json:"id" gorm:"column:id;primaryKey"`
	Type        string `json:"type" gorm:"column:type"`
	Name        string `json:"name" gorm:"column:name"`
	Description string `json:"description" gorm:"column:description"`
	Avatar      string `json:"avatar" gorm:"column:avatar"`
	CreatedBy   string `json:"created_by" gorm:"column:created_by"`
	IsActive    bool   `json:"is_active" gorm:"column:is_active;default:true"`

	// DirectKey deduplicates direct conversations; empty for groups.
	// Unique index is sparse via NULL (empty string stored as NULL by the repo).
	DirectKey *string `json:"-" gorm:"column:direct_key;uniqueIndex"`

	// LastMessage* always reference the message with the highest seq in the
	// conversation; LastMessageSeq is the monotonic guard for their update.
	LastMessageAt  int64  `json:"last_message_at" gorm:"column:last_message_at"`
	LastMessageId  string `json:"last_message_id" gorm:"column:last_message_id"`
	LastMessageSeq int64  `json:"-" gorm:"column:last_message_seq"`

	Settings ConversationSettings `json:"settings" gorm:"embedded"`

	CreatedAt int64 `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64 `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationInfo represents conversation info for API responses
type ConversationInfo struct {
	Id            string               `json:"id"`
	Type          string               `json:"type"`
	Name          string               `json:"name,omitempty"`
	Description   string               `json:"description,omitempty"`
	Avatar        string               `json:"avatar,omitempty"`
	CreatedBy     string               `json:"created_by"`
	IsActive      bool                 `json:"is_active"`
	LastMessageAt int64                `json:"last_message_at"`
	LastMessageId string               `json:"last_message_id,omitempty"`
	Settings      ConversationSettings `json:"settings"`
	MaxSeq        int64                `json:"max_seq"`
	ReadSeq       int64                `json:"read_seq"`
	UnreadCount   int64                `json:"unread_count"`
	UpdatedAt     int64                `json:"updated_at"`
}

// ToConversationInfo converts Conversation to ConversationInfo
func (c *Conversation) ToConversationInfo() *ConversationInfo {
	return &ConversationInfo{
		Id:            c.Id,
		Type:          c.Type,
		Name:          c.Name,
		Description:   c.Description,
		Avatar:        c.Avatar,
		CreatedBy:     c.CreatedBy,
		IsActive:      c.IsActive,
		LastMessageAt: c.LastMessageAt,
		LastMessageId: c.LastMessageId,
		Settings:      c.Settings,
		UpdatedAt:     c.UpdatedAt,
	}
}

// ConversationWithReadState joins a conversation with the caller's read state
type ConversationWithReadState struct {
	Conversation
	MaxSeq      int64 `json:"max_seq"`
	ReadSeq     int64 `json:"read_seq"`
	UnreadCount int64 `json:"unread_count"`
}
