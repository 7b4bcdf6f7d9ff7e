package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateContract   OutboxAggregateType = "contract"
	AggregateWithdrawal OutboxAggregateType = "withdrawal"
	AggregateMessage    OutboxAggregateType = "message"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateContract,
	AggregateWithdrawal,
	AggregateMessage,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventContractCreated      OutboxEventType = "contract_created"
	EventContractStateChanged OutboxEventType = "contract_state_changed"
	EventEscrowCharged        OutboxEventType = "escrow_charged"
	EventEscrowReleased       OutboxEventType = "escrow_released"
	EventEscrowRefunded       OutboxEventType = "escrow_refunded"
	EventWithdrawalRequested  OutboxEventType = "withdrawal_requested"
	EventWithdrawalSettled    OutboxEventType = "withdrawal_settled"
	EventMessageBlocked       OutboxEventType = "message_blocked"
)

var validOutboxEventTypes = []OutboxEventType{
	EventContractCreated,
	EventContractStateChanged,
	EventEscrowCharged,
	EventEscrowReleased,
	EventEscrowRefunded,
	EventWithdrawalRequested,
	EventWithdrawalSettled,
	EventMessageBlocked,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why a row was parked in the dead-letter table.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)
