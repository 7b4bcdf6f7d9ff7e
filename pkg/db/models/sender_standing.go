package models

import (
	"time"

	"github.com/google/uuid"
)

// SenderStanding tracks messaging-abuse state per sender. It lives in its own
// table so standing writes never contend with unrelated profile updates.
type SenderStanding struct {
	SenderID     uuid.UUID  `gorm:"column:sender_id;type:uuid;primaryKey"`
	WarningCount int        `gorm:"column:warning_count;not null;default:0"`
	BlockedUntil *time.Time `gorm:"column:blocked_until"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
