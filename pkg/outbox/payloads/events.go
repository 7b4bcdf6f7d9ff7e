package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

// ContractCreatedEvent signals a freshly proposed contract.
type ContractCreatedEvent struct {
	ContractID uuid.UUID `json:"contract_id"`
	ClientID   uuid.UUID `json:"client_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	ValueCents int64     `json:"value_cents"`
	EventName  string    `json:"event_name"`
}

// ContractStateChangedEvent is emitted on every accepted transition.
type ContractStateChangedEvent struct {
	ContractID uuid.UUID            `json:"contract_id"`
	ClientID   uuid.UUID            `json:"client_id"`
	ProviderID uuid.UUID            `json:"provider_id"`
	Action     enums.ContractAction `json:"action"`
	OldStatus  enums.ContractStatus `json:"old_status"`
	NewStatus  enums.ContractStatus `json:"new_status"`
	ValueCents int64                `json:"value_cents"`
}

// EscrowChargedEvent reports a captured escrow charge.
type EscrowChargedEvent struct {
	ContractID          uuid.UUID `json:"contract_id"`
	ClientID            uuid.UUID `json:"client_id"`
	ProviderID          uuid.UUID `json:"provider_id"`
	ValueCents          int64     `json:"value_cents"`
	ProviderAmountCents int64     `json:"provider_amount_cents"`
	PlatformFeeCents    int64     `json:"platform_fee_cents"`
	GatewayChargeID     string    `json:"gateway_charge_id"`
}

// EscrowReleasedEvent reports held funds moving to the provider's balance.
type EscrowReleasedEvent struct {
	ContractID          uuid.UUID `json:"contract_id"`
	ProviderID          uuid.UUID `json:"provider_id"`
	ProviderAmountCents int64     `json:"provider_amount_cents"`
	ReleasedAt          time.Time `json:"released_at"`
}

// EscrowRefundedEvent reports held funds returned to the client.
type EscrowRefundedEvent struct {
	ContractID uuid.UUID `json:"contract_id"`
	ClientID   uuid.UUID `json:"client_id"`
	ValueCents int64     `json:"value_cents"`
	Reason     string    `json:"reason,omitempty"`
}

// WithdrawalRequestedEvent is emitted when a payout transfer is initiated.
type WithdrawalRequestedEvent struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	UserID       uuid.UUID `json:"user_id"`
	AmountCents  int64     `json:"amount_cents"`
}

// WithdrawalSettledEvent reports the reconciler finishing a payout.
type WithdrawalSettledEvent struct {
	WithdrawalID uuid.UUID              `json:"withdrawal_id"`
	UserID       uuid.UUID              `json:"user_id"`
	AmountCents  int64                  `json:"amount_cents"`
	Status       enums.WithdrawalStatus `json:"status"`
	SettledAt    time.Time              `json:"settled_at"`
}

// MessageBlockedEvent is emitted when the gatekeeper rejects a message.
type MessageBlockedEvent struct {
	ContractID uuid.UUID `json:"contract_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	Reason     string    `json:"reason"`
	Warnings   int       `json:"warnings"`
}
