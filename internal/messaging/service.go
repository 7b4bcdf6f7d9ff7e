package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/internal/contracts"
	dbpkg "github.com/angelmondragon/gigbroker-backend/pkg/db"
	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/metrics"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/gigbroker-backend/pkg/pagination"
)

const (
	// warningThreshold is how many prior warnings a sender may carry before
	// the next violation suspends messaging. The second offense suspends.
	warningThreshold = 1
	suspensionWindow = 24 * time.Hour
)

// TxRunner opens a database transaction for a unit of work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Emitter queues domain events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the message gatekeeper. Contact information is masked while the
// contract is live; repeat offenders are suspended from messaging entirely.
type Service interface {
	Send(ctx context.Context, input SendInput) (*models.Message, error)
	List(ctx context.Context, contractID, actorID uuid.UUID, params pagination.Params) ([]models.Message, error)
}

// SendInput is one message from a contract party to the other.
type SendInput struct {
	ContractID uuid.UUID
	SenderID   uuid.UUID
	Body       string
}

type service struct {
	tx           TxRunner
	repo         Repository
	standings    StandingRepository
	contractRepo contracts.Repository
	emitter      Emitter
	metrics      *metrics.PlatformMetrics
	logg         *logger.Logger
}

// NewService wires the message gatekeeper.
func NewService(
	tx TxRunner,
	repo Repository,
	standings StandingRepository,
	contractRepo contracts.Repository,
	emitter Emitter,
	m *metrics.PlatformMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("message repository required")
	}
	if standings == nil {
		return nil, fmt.Errorf("standing repository required")
	}
	if contractRepo == nil {
		return nil, fmt.Errorf("contract repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:           tx,
		repo:         repo,
		standings:    standings,
		contractRepo: contractRepo,
		emitter:      emitter,
		metrics:      m,
		logg:         logg,
	}, nil
}

// Send delivers a message through the masking pass. Clean messages store as
// sent. Every flagged message is stored masked and blocked, with the raw body
// retained for moderation, and costs a warning; the second offense suspends
// the sender.
func (s *service) Send(ctx context.Context, input SendInput) (*models.Message, error) {
	if input.Body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}

	contract, err := s.contractRepo.FindByID(ctx, input.ContractID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return nil, err
	}

	role, ok := contract.PartyRoleOf(input.SenderID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sender is not a party to the contract")
	}
	// Messaging survives every live and settled state so parties can sort
	// out logistics and disputes. Only cancellation closes the channel.
	if contract.StatusMaster == enums.ContractStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "messaging is closed on cancelled contracts")
	}

	receiverID := contract.ProviderID
	if role == enums.PartyRoleProvider {
		receiverID = contract.ClientID
	}

	var message *models.Message
	var blockErr error
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		standings := s.standings.WithTx(tx)
		standing, err := standings.Find(ctx, input.SenderID)
		if err != nil {
			return fmt.Errorf("loading sender standing: %w", err)
		}
		if standing.BlockedUntil != nil && standing.BlockedUntil.After(time.Now()) {
			return pkgerrors.New(pkgerrors.CodeTemporarilyBlocked,
				fmt.Sprintf("messaging suspended until %s", standing.BlockedUntil.UTC().Format(time.RFC3339)))
		}

		result := filterBody(input.Body)
		if !result.Flagged() {
			message = &models.Message{
				ContractID: contract.ID,
				SenderID:   input.SenderID,
				ReceiverID: receiverID,
				Body:       input.Body,
			}
			return s.repo.WithTx(tx).Create(ctx, message)
		}

		standing.WarningCount++
		original := input.Body
		reason := violationSummary(result.Violations)

		message = &models.Message{
			ContractID:   contract.ID,
			SenderID:     input.SenderID,
			ReceiverID:   receiverID,
			Body:         result.Masked,
			OriginalBody: &original,
			Blocked:      true,
			BlockReason:  &reason,
		}

		suspend := standing.WarningCount > warningThreshold
		if suspend {
			until := time.Now().Add(suspensionWindow)
			standing.BlockedUntil = &until
		}

		if err := s.repo.WithTx(tx).Create(ctx, message); err != nil {
			return fmt.Errorf("storing blocked message: %w", err)
		}
		if err := standings.Upsert(ctx, standing); err != nil {
			return fmt.Errorf("recording sender warning: %w", err)
		}
		err = s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMessageBlocked,
			AggregateType: enums.AggregateMessage,
			AggregateID:   message.ID,
			Actor:         &outbox.ActorRef{UserID: input.SenderID, Role: string(role)},
			Data: payloads.MessageBlockedEvent{
				ContractID: contract.ID,
				SenderID:   input.SenderID,
				Reason:     reason,
				Warnings:   standing.WarningCount,
			},
		})
		if err != nil {
			return err
		}
		s.metrics.IncBlockedMessage()
		if suspend {
			blockErr = pkgerrors.New(pkgerrors.CodeTemporarilyBlocked,
				"messaging suspended for repeated contact sharing")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if blockErr != nil {
		return nil, blockErr
	}

	if message.OriginalBody != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"contract_id": contract.ID.String(),
			"sender_id":   input.SenderID.String(),
			"reason":      *message.BlockReason,
		})
		s.logg.Warn(logCtx, "message masked by gatekeeper")
	}
	return message, nil
}

// List returns the contract's messages for one of its parties. Raw bodies
// never leave this package; callers only see the masked text.
func (s *service) List(ctx context.Context, contractID, actorID uuid.UUID, params pagination.Params) ([]models.Message, error) {
	contract, err := s.contractRepo.FindByID(ctx, contractID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return nil, err
	}
	if _, ok := contract.PartyRoleOf(actorID); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor is not a party to the contract")
	}

	messages, err := s.repo.ListByContractID(ctx, contractID, params)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i].OriginalBody = nil
	}
	return messages, nil
}
