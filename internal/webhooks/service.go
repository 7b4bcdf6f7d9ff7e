package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/internal/ledger"
	"github.com/angelmondragon/gigbroker-backend/internal/withdrawals"
	dbpkg "github.com/angelmondragon/gigbroker-backend/pkg/db"
	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/metrics"
	"github.com/angelmondragon/gigbroker-backend/pkg/redis"
)

const (
	idempotencyScope = "webhook:gateway"
	processedTTL     = 72 * time.Hour
)

// Outcome labels what Process did with the event. The values double as the
// webhook metric label.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomePending   Outcome = "pending"
	OutcomeReview    Outcome = "review"
)

// Event is one normalized gateway webhook delivery.
type Event struct {
	EventID     string
	ExternalID  string
	RawStatus   string
	AmountCents int64
	Payload     json.RawMessage
}

// TxRunner opens a database transaction for a unit of work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service reconciles async gateway notifications against the ledger. Matching
// is strict: an event either matches a known gateway reference or lands in the
// review queue. Nothing is applied by amount or timing heuristics.
type Service interface {
	Process(ctx context.Context, event Event) (Outcome, error)
	ListOpenReviews(ctx context.Context, limit int) ([]models.WebhookReview, error)
	ResolveReview(ctx context.Context, eventID string) error
}

type service struct {
	tx          TxRunner
	ledgerRepo  ledger.Repository
	withdrawals withdrawals.Service
	reviews     ReviewRepository
	store       redis.IdempotencyStore
	metrics     *metrics.PlatformMetrics
	logg        *logger.Logger
}

// NewService wires the webhook reconciler.
func NewService(
	tx TxRunner,
	ledgerRepo ledger.Repository,
	withdrawalSvc withdrawals.Service,
	reviews ReviewRepository,
	store redis.IdempotencyStore,
	m *metrics.PlatformMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if withdrawalSvc == nil {
		return nil, fmt.Errorf("withdrawal service required")
	}
	if reviews == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:          tx,
		ledgerRepo:  ledgerRepo,
		withdrawals: withdrawalSvc,
		reviews:     reviews,
		store:       store,
		metrics:     m,
		logg:        logg,
	}, nil
}

// Process applies one webhook event exactly once. Redeliveries short-circuit
// on the processed marker; a failed transaction clears the marker so the
// gateway's retry can run again.
func (s *service) Process(ctx context.Context, event Event) (Outcome, error) {
	if event.EventID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if event.ExternalID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}

	key := s.store.IdempotencyKey(idempotencyScope, event.EventID)
	fresh, err := s.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), processedTTL)
	if err != nil {
		return "", fmt.Errorf("marking webhook event: %w", err)
	}
	if !fresh {
		s.metrics.IncWebhookEvent(string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}

	outcome, err := s.apply(ctx, event)
	if err != nil {
		if delErr := s.store.Del(ctx, key); delErr != nil {
			s.logg.Error(ctx, "releasing webhook marker", delErr)
		}
		return "", err
	}

	s.metrics.IncWebhookEvent(string(outcome))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":    event.EventID,
		"external_id": event.ExternalID,
		"outcome":     outcome,
	})
	s.logg.Info(logCtx, "gateway webhook processed")
	return outcome, nil
}

func (s *service) apply(ctx context.Context, event Event) (Outcome, error) {
	class := classifyStatus(event.RawStatus)

	// Pending is the gateway telling us nothing changed yet. Ack it and wait
	// for the terminal delivery.
	if class == statusPending {
		return OutcomePending, nil
	}

	var outcome Outcome
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if class == statusUnknown {
			var err error
			outcome, err = s.queueReview(ctx, tx, event, "unrecognized status")
			return err
		}

		// Tier one: a withdrawal owns the reference.
		settled, err := s.withdrawals.Settle(ctx, tx, withdrawals.SettleInput{
			GatewayReference: event.ExternalID,
			Succeeded:        class == statusSuccess,
			FailureReason:    failureReason(class, event.RawStatus),
		})
		if err == nil {
			if settled.Changed {
				outcome = OutcomeApplied
			} else {
				outcome = OutcomeDuplicate
			}
			return nil
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return err
		}

		// Tier two: escrow ledger entries tagged with the reference.
		status := enums.LedgerEntryStatusCompleted
		if class == statusFailure {
			status = enums.LedgerEntryStatusFailed
		}
		rows, err := s.ledgerRepo.WithTx(tx).UpdateStatusByGatewayReference(ctx, event.ExternalID, status)
		if err != nil {
			return fmt.Errorf("updating ledger status: %w", err)
		}
		if rows > 0 {
			outcome = OutcomeApplied
			return nil
		}

		outcome, err = s.queueReview(ctx, tx, event, "unmatched reference")
		return err
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *service) queueReview(ctx context.Context, tx *gorm.DB, event Event, reason string) (Outcome, error) {
	review := &models.WebhookReview{
		EventID:     event.EventID,
		ExternalID:  event.ExternalID,
		RawStatus:   event.RawStatus,
		AmountCents: event.AmountCents,
		Reason:      reason,
		Payload:     event.Payload,
	}
	if err := s.reviews.WithTx(tx).Create(ctx, review); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_webhook_reviews_event") {
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("queueing webhook review: %w", err)
	}
	return OutcomeReview, nil
}

func failureReason(class statusClass, rawStatus string) string {
	if class != statusFailure {
		return ""
	}
	return rawStatus
}

// ListOpenReviews returns events waiting for a human decision.
func (s *service) ListOpenReviews(ctx context.Context, limit int) ([]models.WebhookReview, error) {
	return s.reviews.ListOpen(ctx, limit)
}

// ResolveReview closes a review row after an operator settled it manually.
func (s *service) ResolveReview(ctx context.Context, eventID string) error {
	review, err := s.reviews.FindByEventID(ctx, eventID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return err
	}
	if review.ReviewedAt != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "review already resolved")
	}
	return s.reviews.MarkReviewed(ctx, review.ID)
}
