package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/pkg/config"
	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
// Every event rides the single domain topic; consumers filter by attributes.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DomainTopic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	domainTopic := cfg.DomainTopic

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventContractCreated,
			AggregateType:  enums.AggregateContract,
			Topic:          domainTopic,
			PayloadFactory: func() interface{} { return &payloads.ContractCreatedEvent{} },
		},
		{
			EventType:      enums.EventContractStateChanged,
			AggregateType:  enums.AggregateContract,
			Topic:          domainTopic,
			PayloadFactory: func() interface{} { return &payloads.ContractStateChangedEvent{} },
		},
		{
			EventType:      enums.EventEscrowCharged,
			AggregateType:  enums.AggregateContract,
			Topic:          domainTopic,
			PayloadFactory: func() interface{} { return &payloads.EscrowChargedEvent{} },
		},
		{
			EventType:      enums.EventEscrowReleased,
			AggregateType:  enums.AggregateContract,
			Topic:          domainTopic,
			PayloadFactory: func() interface{} { return &payloads.EscrowReleasedEvent{} },
		},
		{
			EventType:      enums.EventEscrowRefunded,
			AggregateType:  enums.AggregateContract,
			Topic:          domainTopic,
			PayloadFactory: func() interface{} { return &payloads.EscrowRefundedEvent{} },
		},
		{
			EventType:      enums.EventWithdrawalRequested,
			AggregateType:  enums.AggregateWithdrawal,
			Topic:          domainTopic,
			PayloadFactory: func() interface{} { return &payloads.WithdrawalRequestedEvent{} },
		},
		{
			EventType:      enums.EventWithdrawalSettled,
			AggregateType:  enums.AggregateWithdrawal,
			Topic:          domainTopic,
			PayloadFactory: func() interface{} { return &payloads.WithdrawalSettledEvent{} },
		},
		{
			EventType:      enums.EventMessageBlocked,
			AggregateType:  enums.AggregateMessage,
			Topic:          domainTopic,
			PayloadFactory: func() interface{} { return &payloads.MessageBlockedEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
