package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox/payloads"
)

// ErrUnsupportedEventType marks events the settlement router has no mapping for.
var ErrUnsupportedEventType = errors.New("unsupported settlement event type")

// Envelope carries one decoded domain event into the router.
type Envelope struct {
	EventID    string
	EventType  enums.OutboxEventType
	OccurredAt time.Time
	Payload    json.RawMessage
}

type rowInserter interface {
	Insert(ctx context.Context, row SettlementFactRow) error
}

// Router maps money-moving domain events onto settlement fact rows.
type Router struct {
	writer rowInserter
	logg   *logger.Logger
}

// NewRouter wires the settlement fact router.
func NewRouter(writer rowInserter, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{writer: writer, logg: logg}, nil
}

// Supports reports whether the router produces a row for the event type.
func (r *Router) Supports(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventEscrowCharged, enums.EventEscrowReleased, enums.EventEscrowRefunded, enums.EventWithdrawalSettled:
		return true
	default:
		return false
	}
}

// Handle converts the envelope into a settlement fact and writes it.
func (r *Router) Handle(ctx context.Context, envelope Envelope) error {
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}

	row, err := r.buildRow(envelope)
	if err != nil {
		return err
	}
	return r.writer.Insert(ctx, *row)
}

func (r *Router) buildRow(envelope Envelope) (*SettlementFactRow, error) {
	base := SettlementFactRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt,
	}
	payloadJSON, err := encodeJSON(envelope.Payload)
	if err != nil {
		return nil, err
	}
	base.Payload = payloadJSON

	switch envelope.EventType {
	case enums.EventEscrowCharged:
		var event payloads.EscrowChargedEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return nil, fmt.Errorf("decode escrow charged: %w", err)
		}
		base.Direction = DirectionCharge
		base.ContractID = strPtr(event.ContractID.String())
		base.ClientID = strPtr(event.ClientID.String())
		base.ProviderID = strPtr(event.ProviderID.String())
		base.GrossCents = int64Ptr(event.ValueCents)
		base.FeeCents = int64Ptr(event.PlatformFeeCents)
		base.NetCents = int64Ptr(event.ProviderAmountCents)
		return &base, nil

	case enums.EventEscrowReleased:
		var event payloads.EscrowReleasedEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return nil, fmt.Errorf("decode escrow released: %w", err)
		}
		base.Direction = DirectionRelease
		base.ContractID = strPtr(event.ContractID.String())
		base.ProviderID = strPtr(event.ProviderID.String())
		base.NetCents = int64Ptr(event.ProviderAmountCents)
		return &base, nil

	case enums.EventEscrowRefunded:
		var event payloads.EscrowRefundedEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return nil, fmt.Errorf("decode escrow refunded: %w", err)
		}
		base.Direction = DirectionRefund
		base.ContractID = strPtr(event.ContractID.String())
		base.ClientID = strPtr(event.ClientID.String())
		base.GrossCents = int64Ptr(event.ValueCents)
		return &base, nil

	case enums.EventWithdrawalSettled:
		var event payloads.WithdrawalSettledEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return nil, fmt.Errorf("decode withdrawal settled: %w", err)
		}
		base.Direction = DirectionPayout
		base.WithdrawalID = strPtr(event.WithdrawalID.String())
		base.ProviderID = strPtr(event.UserID.String())
		base.NetCents = int64Ptr(event.AmountCents)
		base.Status = strPtr(string(event.Status))
		return &base, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
}
