package entity

// ReadReceipt records one user's acknowledgment of one message.
// The (message_id, user_id) unique pair makes the upsert idempotent.
type ReadReceipt struct {
	Id        int64  `json:"-" gorm:"column:id;primaryKey;autoIncrement"`
	MessageId string `json:"message_id" gorm:"column:message_id;uniqueIndex:uk_msg_user"`
	UserId    string `json:"user_id" gorm:"column:user_id;uniqueIndex:uk_msg_user"`
	ReadAt    int64  `json:"read_at" gorm:"column:read_at"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for ReadReceipt
func (ReadReceipt) TableName() string {
	return "read_receipts"
}
