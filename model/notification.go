package model

import "time"

// Notification is a persisted player notification.
type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID  int64     `gorm:"index:idx_notification_player;not null" json:"player_id"`
	Category  string    `gorm:"size:16;not null" json:"category"` // quest | achievement | chain | system
	Kind      string    `gorm:"size:32;not null" json:"kind"`
	Title     string    `gorm:"size:128" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `gorm:"index:idx_notification_created;autoCreateTime" json:"created_at"`
}
