package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records claims, chain starts and branch choices.
type AuditLog struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID    string         `gorm:"index:idx_audit_trace;size:36;not null" json:"trace_id"`
	PlayerID   int64          `gorm:"index:idx_audit_player" json:"player_id"`
	Action     string         `gorm:"size:64;not null" json:"action"`
	Target     string         `gorm:"size:64" json:"target"`
	Request    datatypes.JSON `json:"request"`
	Response   datatypes.JSON `json:"response"`
	Error      string         `gorm:"type:text" json:"error"`
	DurationMs int            `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
