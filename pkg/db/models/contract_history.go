package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

// ContractHistoryEntry is one accepted transition. The table is append-only and
// is the authoritative record presented to dispute reviewers.
type ContractHistoryEntry struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID  uuid.UUID            `gorm:"column:contract_id;type:uuid;not null;index"`
	Action      enums.ContractAction `gorm:"column:action;type:contract_action;not null"`
	PerformedBy uuid.UUID            `gorm:"column:performed_by;type:uuid;not null"`

	OldStatus enums.ContractStatus `gorm:"column:old_status;type:contract_status;not null"`
	NewStatus enums.ContractStatus `gorm:"column:new_status;type:contract_status;not null"`

	OldValueCents int64 `gorm:"column:old_value_cents;not null"`
	NewValueCents int64 `gorm:"column:new_value_cents;not null"`

	Metadata  json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
