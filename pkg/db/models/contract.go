package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

// Contract is one booking negotiation between a client and a provider. Rows are
// never deleted; terminal contracts stay behind for dispute review.
type Contract struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClientID   uuid.UUID `gorm:"column:client_id;type:uuid;not null;index"`
	ProviderID uuid.UUID `gorm:"column:provider_id;type:uuid;not null;index"`

	StatusMaster enums.ContractStatus `gorm:"column:status_master;type:contract_status;not null;default:'PROPOSED'"`

	CurrentValueCents  int64 `gorm:"column:current_value_cents;not null"`
	OriginalValueCents int64 `gorm:"column:original_value_cents;not null"`

	EventName     string    `gorm:"column:event_name;type:text;not null"`
	EventDate     time.Time `gorm:"column:event_date;type:timestamptz;not null"`
	EventLocation string    `gorm:"column:event_location;type:text;not null"`

	ProviderPlanTier enums.ProviderPlanTier `gorm:"column:provider_plan_tier;type:provider_plan_tier;not null;default:'standard'"`

	ClientSignedAt   *time.Time `gorm:"column:client_signed_at"`
	ProviderSignedAt *time.Time `gorm:"column:provider_signed_at"`

	DisputeReason   *string    `gorm:"column:dispute_reason;type:text"`
	DisputeOpenedAt *time.Time `gorm:"column:dispute_opened_at"`

	GatewayChargeID *string `gorm:"column:gateway_charge_id;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// PartyRoleOf reports which side of the contract the actor is on.
func (c *Contract) PartyRoleOf(actorID uuid.UUID) (enums.PartyRole, bool) {
	switch actorID {
	case c.ClientID:
		return enums.PartyRoleClient, true
	case c.ProviderID:
		return enums.PartyRoleProvider, true
	default:
		return "", false
	}
}
