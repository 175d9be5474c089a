package model

import "time"

// AchievementProgress tracks cumulative progress on one achievement.
// Non-tiered achievements count as one tier: CurrentTier becomes 1 when they
// complete. Completed means CurrentTier reached the last tier.
type AchievementProgress struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID      int64      `gorm:"uniqueIndex:idx_player_achievement;not null" json:"player_id"`
	AchievementID string     `gorm:"uniqueIndex:idx_player_achievement;size:64;not null" json:"achievement_id"`
	Progress      int        `gorm:"default:0" json:"progress"`
	CurrentTier   int        `gorm:"default:0" json:"current_tier"`
	Completed     bool       `gorm:"default:false" json:"completed"`
	CompletedAt   *time.Time `json:"completed_at"`
	ClaimedTier   int        `gorm:"default:0" json:"claimed_tier"`
	Claimed       bool       `gorm:"default:false" json:"claimed"`
	ClaimedAt     *time.Time `json:"claimed_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
