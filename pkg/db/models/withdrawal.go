package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

// Withdrawal is a payout request against a provider's available balance.
// Status leaves pending only through the webhook reconciler.
type Withdrawal struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	AmountCents int64                  `gorm:"column:amount_cents;not null"`
	PayoutKey   string                 `gorm:"column:payout_key;type:text;not null"`
	Status      enums.WithdrawalStatus `gorm:"column:status;type:withdrawal_status;not null;default:'pending'"`

	GatewayReference *string `gorm:"column:gateway_reference;type:text;uniqueIndex"`
	FailureReason    *string `gorm:"column:failure_reason;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
