package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

// Ledger source types. Contract entries come from the escrow engine,
// withdrawal entries from the payout flow.
const (
	LedgerSourceContract   = "CONTRACT"
	LedgerSourceWithdrawal = "WITHDRAWAL"
)

// LedgerEntry records an immutable money movement. Corrections are new
// compensating entries, never edits.
type LedgerEntry struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProfileID  uuid.UUID `gorm:"column:profile_id;type:uuid;not null;index"`
	SourceType string    `gorm:"column:source_type;type:text;not null;default:'CONTRACT'"`
	SourceID   uuid.UUID `gorm:"column:source_id;type:uuid;not null;index"`

	Kind        enums.LedgerEntryKind   `gorm:"column:kind;type:ledger_entry_kind;not null"`
	AmountCents int64                   `gorm:"column:amount_cents;not null"`
	Status      enums.LedgerEntryStatus `gorm:"column:status;type:ledger_entry_status;not null;default:'pending'"`

	GatewayReference *string         `gorm:"column:gateway_reference;type:text;index"`
	Metadata         json.RawMessage `gorm:"column:metadata;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
