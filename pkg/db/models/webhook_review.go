package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookReview holds gateway events the reconciler could not match strictly.
// Rows wait here for a human instead of being applied by amount guessing.
type WebhookReview struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID     string          `gorm:"column:event_id;type:text;not null;uniqueIndex"`
	ExternalID  string          `gorm:"column:external_id;type:text"`
	RawStatus   string          `gorm:"column:raw_status;type:text"`
	AmountCents int64           `gorm:"column:amount_cents;not null;default:0"`
	Reason      string          `gorm:"column:reason;type:text;not null"`
	Payload     json.RawMessage `gorm:"column:payload;type:jsonb"`
	ReviewedAt  *time.Time      `gorm:"column:reviewed_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
