package entity

// Profile caches display metadata owned by the external profile store.
// Rows are refreshed from verified identity claims on connect and serve
// roster rendering only; this core is never the source of truth for them.
type Profile struct {
	UserId      string `json:"user_id" gorm:"column:user_id;primaryKey"`
	Username    string `json:"username" gorm:"column:username"`
	DisplayName string `json:"display_name" gorm:"column:display_name"`
	Avatar      string `json:"avatar" gorm:"column:avatar"`
	Status      string `json:"status" gorm:"column:status"`
	UpdatedAt   int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}
