package entity

// SeqConversation is the durable shadow of the per-conversation sequence
// counter held in Redis. It reseeds the counter after a Redis restart and
// backs the unique-index guard on (conversation_id, seq).
type SeqConversation struct {
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;primaryKey"`
	MaxSeq         int64  `json:"max_seq" gorm:"column:max_seq"`
}

// TableName returns the table name for SeqConversation
func (SeqConversation) TableName() string {
	return "seq_conversations"
}
