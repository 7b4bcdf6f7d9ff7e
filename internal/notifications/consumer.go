package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox/payloads"
)

const domainNotificationConsumer = "domain-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns contract, escrow, and withdrawal
// activity into in-app notifications for the affected users.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the domain notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	handler, ok := c.handlerFor(eventType)
	if !ok {
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		return processResult{ack: true}
	}

	if err := handler(ctx, envelope.Data); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, domainNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handlerFor(eventType enums.OutboxEventType) (func(context.Context, json.RawMessage) error, bool) {
	switch eventType {
	case enums.EventContractStateChanged:
		return c.handleStateChanged, true
	case enums.EventEscrowCharged:
		return c.handleEscrowCharged, true
	case enums.EventEscrowReleased:
		return c.handleEscrowReleased, true
	case enums.EventEscrowRefunded:
		return c.handleEscrowRefunded, true
	case enums.EventWithdrawalSettled:
		return c.handleWithdrawalSettled, true
	case enums.EventMessageBlocked:
		return c.handleMessageBlocked, true
	default:
		return nil, false
	}
}

func (c *Consumer) handleStateChanged(ctx context.Context, data json.RawMessage) error {
	var payload payloads.ContractStateChangedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	notificationType := enums.NotificationContractUpdated
	title := "Contract updated"
	message := fmt.Sprintf("Contract moved to %s.", payload.NewStatus)
	if payload.NewStatus == enums.ContractStatusMediation {
		notificationType = enums.NotificationMediationOpened
		title = "Mediation opened"
		message = "A dispute was opened on your contract. A mediator will review it."
	}

	// One failed insert must not starve the other party of their copy.
	link := contractLink(payload.ContractID)
	var errs []error
	for _, userID := range []uuid.UUID{payload.ClientID, payload.ProviderID} {
		notification := &models.Notification{
			UserID:  userID,
			Type:    notificationType,
			Title:   title,
			Message: message,
			Link:    &link,
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

func (c *Consumer) handleEscrowCharged(ctx context.Context, data json.RawMessage) error {
	var payload payloads.EscrowChargedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	link := contractLink(payload.ContractID)
	return c.repo.Create(ctx, &models.Notification{
		UserID:  payload.ProviderID,
		Type:    enums.NotificationPaymentReceived,
		Title:   "Payment secured in escrow",
		Message: fmt.Sprintf("The client funded the contract. %s is held for you.", centsToDisplay(payload.ProviderAmountCents)),
		Link:    &link,
	})
}

func (c *Consumer) handleEscrowReleased(ctx context.Context, data json.RawMessage) error {
	var payload payloads.EscrowReleasedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	link := contractLink(payload.ContractID)
	return c.repo.Create(ctx, &models.Notification{
		UserID:  payload.ProviderID,
		Type:    enums.NotificationPaymentReleased,
		Title:   "Funds released",
		Message: fmt.Sprintf("%s is now available in your balance.", centsToDisplay(payload.ProviderAmountCents)),
		Link:    &link,
	})
}

func (c *Consumer) handleEscrowRefunded(ctx context.Context, data json.RawMessage) error {
	var payload payloads.EscrowRefundedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	link := contractLink(payload.ContractID)
	return c.repo.Create(ctx, &models.Notification{
		UserID:  payload.ClientID,
		Type:    enums.NotificationContractUpdated,
		Title:   "Refund issued",
		Message: fmt.Sprintf("%s is being returned to your payment method.", centsToDisplay(payload.ValueCents)),
		Link:    &link,
	})
}

func (c *Consumer) handleWithdrawalSettled(ctx context.Context, data json.RawMessage) error {
	var payload payloads.WithdrawalSettledEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	title := "Withdrawal completed"
	message := fmt.Sprintf("Your withdrawal of %s was paid out.", centsToDisplay(payload.AmountCents))
	if payload.Status == enums.WithdrawalStatusFailed {
		title = "Withdrawal failed"
		message = fmt.Sprintf("Your withdrawal of %s failed and the amount was returned to your balance.", centsToDisplay(payload.AmountCents))
	}
	link := fmt.Sprintf("/withdrawals/%s", payload.WithdrawalID)
	return c.repo.Create(ctx, &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationWithdrawalUpdate,
		Title:   title,
		Message: message,
		Link:    &link,
	})
}

func (c *Consumer) handleMessageBlocked(ctx context.Context, data json.RawMessage) error {
	var payload payloads.MessageBlockedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	link := contractLink(payload.ContractID)
	return c.repo.Create(ctx, &models.Notification{
		UserID:  payload.SenderID,
		Type:    enums.NotificationMessageBlocked,
		Title:   "Message blocked",
		Message: "Your message was blocked for sharing contact information. Repeated attempts suspend messaging.",
		Link:    &link,
	})
}

func contractLink(contractID uuid.UUID) string {
	return fmt.Sprintf("/contracts/%s", contractID)
}

func centsToDisplay(cents int64) string {
	return fmt.Sprintf("R$ %d.%02d", cents/100, cents%100)
}
