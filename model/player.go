package model

import "time"

// Player is the progression-relevant slice of a player profile.
type Player struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Level     int       `gorm:"default:1" json:"level"`
	Exp       int64     `gorm:"default:0" json:"exp"`
	Gold      int64     `gorm:"default:0" json:"gold"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NextLevelExp is the experience needed to leave the given level.
func NextLevelExp(level int) int64 {
	return int64(level) * 100
}

// PlayerSkill records a player's level in a named skill (mining, smithing, ...).
type PlayerSkill struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID int64  `gorm:"uniqueIndex:idx_player_skill;not null" json:"player_id"`
	Skill    string `gorm:"uniqueIndex:idx_player_skill;size:32;not null" json:"skill"`
	Level    int    `gorm:"default:1" json:"level"`
}

// InventoryItem is a stack of one item in a player's bag.
type InventoryItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID  int64     `gorm:"uniqueIndex:idx_player_item;not null" json:"player_id"`
	ItemID    string    `gorm:"uniqueIndex:idx_player_item;size:64;not null" json:"item_id"`
	Qty       int       `gorm:"default:1" json:"qty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PlayerUnlock is a permanently unlocked zone, feature, quest or title.
type PlayerUnlock struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID  int64     `gorm:"uniqueIndex:idx_player_unlock;not null" json:"player_id"`
	Kind      string    `gorm:"uniqueIndex:idx_player_unlock;size:16;not null" json:"kind"`
	Value     string    `gorm:"uniqueIndex:idx_player_unlock;size:64;not null" json:"value"`
	Source    string    `gorm:"size:64" json:"source"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
