package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChainStatus is the lifecycle state of a storyline attempt.
type ChainStatus = string

const (
	ChainStatusActive    ChainStatus = "active"
	ChainStatusCompleted ChainStatus = "completed"
	ChainStatusFailed    ChainStatus = "failed"
	ChainStatusOnHold    ChainStatus = "on_hold"
)

// CompletedStep records one finished storyline step and the branch choice
// made after it, if any.
type CompletedStep struct {
	Step        int       `json:"step"`
	QuestID     string    `json:"quest_id"`
	CompletedAt time.Time `json:"completed_at"`
	Choice      string    `json:"choice,omitempty"`
}

// ChainProgress is one player's attempt at a quest chain.
// CurrentQuestID is non-nil iff Status is active.
type ChainProgress struct {
	ID             int64                             `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID       int64                             `gorm:"uniqueIndex:idx_player_chain_attempt;index:idx_player_chain_status,priority:1;not null" json:"player_id"`
	ChainID        string                            `gorm:"uniqueIndex:idx_player_chain_attempt;size:64;not null" json:"chain_id"`
	Attempt        int                               `gorm:"uniqueIndex:idx_player_chain_attempt;default:1" json:"attempt"`
	CurrentStep    int                               `gorm:"default:1" json:"current_step"`
	CurrentQuestID *string                           `gorm:"size:64" json:"current_quest_id"`
	AwaitingChoice bool                              `gorm:"default:false" json:"awaiting_choice"`
	CompletedSteps datatypes.JSONSlice[CompletedStep] `json:"completed_steps"`
	Status         string                            `gorm:"index:idx_player_chain_status,priority:2;size:16;not null" json:"status"`
	Rewarded       bool                              `gorm:"default:false" json:"rewarded"`
	StartedAt      time.Time                         `json:"started_at"`
	CompletedAt    *time.Time                        `json:"completed_at"`
	RewardedAt     *time.Time                        `json:"rewarded_at"`
}

// ChoiceAt returns the choice recorded after the given step.
func (c *ChainProgress) ChoiceAt(step int) (string, bool) {
	for _, s := range c.CompletedSteps {
		if s.Step == step && s.Choice != "" {
			return s.Choice, true
		}
	}
	return "", false
}
