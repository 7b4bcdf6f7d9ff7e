package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox"
)

const settlementConsumerName = "settlement-analytics"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type envelopeHandler interface {
	Supports(eventType enums.OutboxEventType) bool
	Handle(ctx context.Context, envelope Envelope) error
}

// Consumer drains money-moving domain events into the settlement facts table.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	handler      envelopeHandler
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer creates the settlement analytics consumer.
func NewConsumer(subscription *gcppubsub.Subscriber, handler envelopeHandler, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("analytics subscription is required")
	}
	if handler == nil {
		return nil, errors.New("settlement handler is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		handler:      handler,
		manager:      manager,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run starts consuming until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	eventType := enums.OutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !c.handler.Supports(eventType) {
		return processResult{}
	}

	envelope, err := c.buildEnvelope(msg, eventType)
	if err != nil {
		c.logg.Warn(logCtx, fmt.Sprintf("invalid settlement envelope: %v", err))
		return processResult{}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Warn(logCtx, "invalid event id")
		return processResult{}
	}

	already, err := c.manager.CheckAndMarkProcessed(logCtx, settlementConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		return processResult{}
	}

	if err := c.handler.Handle(logCtx, *envelope); err != nil {
		c.logg.Error(logCtx, "settlement handler error", err)
		_ = c.manager.Delete(logCtx, settlementConsumerName, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "settlement event recorded")
	return processResult{}
}

func (c *Consumer) buildEnvelope(msg *gcppubsub.Message, eventType enums.OutboxEventType) (*Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	return &Envelope{
		EventID:    eventID,
		EventType:  eventType,
		OccurredAt: stored.OccurredAt.UTC(),
		Payload:    stored.Data,
	}, nil
}
