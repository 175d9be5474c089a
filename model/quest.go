package model

import (
	"time"

	"gorm.io/datatypes"
)

// RequirementProgress is the counter of one quest requirement.
type RequirementProgress struct {
	Index     int  `json:"index"`
	Current   int  `json:"current"`
	Completed bool `json:"completed"`
}

// QuestProgress tracks a player's progress on one quest.
// Completed holds iff every counter is completed; Rewarded implies Completed.
type QuestProgress struct {
	ID          int64                                   `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID    int64                                   `gorm:"uniqueIndex:idx_player_quest;index:idx_player_quest_state,priority:1;not null" json:"player_id"`
	QuestID     string                                  `gorm:"uniqueIndex:idx_player_quest;size:64;not null" json:"quest_id"`
	QuestType   string                                  `gorm:"size:16;not null" json:"quest_type"`
	Counters    datatypes.JSONSlice[RequirementProgress] `json:"counters"`
	Completed   bool                                    `gorm:"index:idx_player_quest_state,priority:2;default:false" json:"completed"`
	Rewarded    bool                                    `gorm:"default:false" json:"rewarded"`
	StartedAt   time.Time                               `json:"started_at"`
	ExpiresAt   *time.Time                              `json:"expires_at"`
	CompletedAt *time.Time                              `json:"completed_at"`
	RewardedAt  *time.Time                              `json:"rewarded_at"`
}

// Expired reports whether an incomplete quest ran out of time at now.
func (q *QuestProgress) Expired(now time.Time) bool {
	return !q.Completed && q.ExpiresAt != nil && !now.Before(*q.ExpiresAt)
}

// QuestCompletion is the permanent history of completed quests. Quest
// progress rows are recycled by daily/weekly refreshes; this table is not.
type QuestCompletion struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID    int64     `gorm:"index:idx_quest_completion;not null" json:"player_id"`
	QuestID     string    `gorm:"index:idx_quest_completion;size:64;not null" json:"quest_id"`
	CompletedAt time.Time `json:"completed_at"`
}
