package entity

import "github.com/parley-im/parley/pkg/constant"

// ParticipantPermissions holds per-participant capabilities,
// flattened into columns with an embedded prefix
type ParticipantPermissions struct {
	CanSendMessages     bool `json:"can_send_messages" gorm:"column:can_send_messages;default:true"`
	CanInviteUsers      bool `json:"can_invite_users" gorm:"column:can_invite_users"`
	CanEditConversation bool `json:"can_edit_conversation" gorm:"column:can_edit_conversation"`
	CanDeleteMessages   bool `json:"can_delete_messages" gorm:"column:can_delete_messages"`
}

// NotificationSettings holds per-participant notification preferences
type NotificationSettings struct {
	MuteUntil    int64 `json:"mute_until" gorm:"column:mute_until"`
	MentionsOnly bool  `json:"mentions_only" gorm:"column:mentions_only"`
	PushEnabled  bool  `json:"push_enabled" gorm:"column:push_enabled;default:true"`
	EmailEnabled bool  `json:"email_enabled" gorm:"column:email_enabled;default:true"`
}

// Participant represents a user's membership record in a conversation.
// Rows are soft-deactivated on leave, never deleted, so history
// attribution survives membership churn.
type Participant struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex:uk_conv_user"`
	UserId         string `json:"user_id" gorm:"column:user_id;uniqueIndex:uk_conv_user"`
	Role           string `json:"role" gorm:"column:role;default:member"`
	IsActive       bool   `json:"is_active" gorm:"column:is_active;default:true"`
	JoinedAt       int64  `json:"joined_at" gorm:"column:joined_at"`
	LeftAt         int64  `json:"left_at" gorm:"column:left_at"`

	Permissions ParticipantPermissions `json:"permissions" gorm:"embedded"`

	// Read pointer; LastReadSeq is the monotonic guard so the pointer
	// never regresses to an older message.
	LastReadAt        int64  `json:"last_read_at" gorm:"column:last_read_at"`
	LastReadMessageId string `json:"last_read_message_id" gorm:"column:last_read_message_id"`
	LastReadSeq       int64  `json:"last_read_seq" gorm:"column:last_read_seq"`

	NotificationSettings NotificationSettings `json:"notification_settings" gorm:"embedded"`

	CreatedAt int64 `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64 `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Participant
func (Participant) TableName() string {
	return "participants"
}

// IsAdmin checks if the participant holds the admin role
func (p *Participant) IsAdmin() bool {
	return p.Role == constant.RoleAdmin
}

// CanModerate checks if the participant may act on other members
func (p *Participant) CanModerate() bool {
	return p.Role == constant.RoleAdmin || p.Role == constant.RoleModerator
}

// AdminPermissions returns the permission set granted to conversation creators
func AdminPermissions() ParticipantPermissions {
	return ParticipantPermissions{
		CanSendMessages:     true,
		CanInviteUsers:      true,
		CanEditConversation: true,
		CanDeleteMessages:   true,
	}
}

// MemberPermissions returns the default permission set for joined members
func MemberPermissions() ParticipantPermissions {
	return ParticipantPermissions{
		CanSendMessages: true,
	}
}

// DefaultNotificationSettings returns the notification defaults for new members
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		PushEnabled:  true,
		EmailEnabled: true,
	}
}

// ParticipantInfo is a roster entry: membership joined with display
// metadata from the profile cache
type ParticipantInfo struct {
	UserId      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Status      string `json:"status,omitempty"`
	Role        string `json:"role"`
	LastReadAt  int64  `json:"last_read_at"`
}
