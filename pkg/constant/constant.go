package constant

// Conversation types
const (
	ConversationTypeDirect = "direct"
	ConversationTypeGroup  = "group"
)

// Participant roles
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

// Message types
const (
	MsgTypeText   = "text"
	MsgTypeImage  = "image"
	MsgTypeFile   = "file"
	MsgTypeSystem = "system"
	MsgTypeReply  = "reply"
	MsgTypeThread = "thread"
)

// Attachment types
const (
	AttachmentImage = "image"
	AttachmentFile  = "file"
	AttachmentVideo = "video"
	AttachmentAudio = "audio"
)

// MaxContentLength is the maximum message content length in runes
const MaxContentLength = 4000

// MaxEmojiLength is the maximum reaction emoji length in runes
const MaxEmojiLength = 10

// SyncPageSize is the fixed page size for backlog synchronization
const SyncPageSize = 50

// SeqRetryAttempts bounds the internal retry on sequence-assignment races
const SeqRetryAttempts = 3

// Protocol event names (client -> server)
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventMarkRead          = "mark_read"
	EventAddReaction       = "add_reaction"
	EventRemoveReaction    = "remove_reaction"
	EventSyncMessages      = "sync_messages"
)

// Protocol event names (server -> client)
const (
	EventConnected       = "connected"
	EventSyncResponse    = "sync_response"
	EventMessageAck      = "message_ack"
	EventMessageReceived = "message_received"
	EventMessageEdited   = "message_edited"
	EventMessageDeleted  = "message_deleted"
	EventReadReceipt     = "read_receipt"
	EventReactionAdded   = "reaction_added"
	EventReactionRemoved = "reaction_removed"
	EventError           = "error"
)

// ServerFeatures advertised in the connected event
var ServerFeatures = []string{"typing", "reactions", "threads", "attachments"}

// Message ack statuses
const (
	AckStatusDelivered = "delivered"
	AckStatusFailed    = "failed"
)

// Redis key patterns (without prefix, use the RedisKey getters for full keys)
const (
	redisKeySeqConversation = "seq:conv:%s" // seq:conv:{conversation_id}
	redisKeyOnline          = "online:%s"   // online:{user_id}
	redisKeyEventBus        = "events"      // cross-instance relay channel
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "parley:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeySeqConversation() string { return redisKeyPrefix + redisKeySeqConversation }
func RedisKeyOnline() string         { return redisKeyPrefix + redisKeyOnline }
func RedisKeyEventBus() string       { return redisKeyPrefix + redisKeyEventBus }
