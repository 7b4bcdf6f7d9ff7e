package withdrawals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/internal/ledger"
	dbpkg "github.com/angelmondragon/gigbroker-backend/pkg/db"
	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/gigbroker-backend/pkg/pagination"
	"github.com/angelmondragon/gigbroker-backend/pkg/stripe"
)

// TxRunner opens a database transaction for a unit of work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Emitter queues domain events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PayoutClient is the slice of the payout rail the withdrawal service uses.
type PayoutClient interface {
	CreateTransfer(ctx context.Context, params stripe.TransferParams) (string, error)
}

// Service turns available provider balance into payout transfers. A request
// leaves the row pending; only the webhook reconciler settles it through
// Settle.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Withdrawal, error)
	Settle(ctx context.Context, tx *gorm.DB, input SettleInput) (*SettleOutcome, error)
	Get(ctx context.Context, withdrawalID, userID uuid.UUID) (*models.Withdrawal, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Withdrawal, error)
}

// RequestInput asks for a payout against the user's available balance.
type RequestInput struct {
	UserID      uuid.UUID
	AmountCents int64
	PayoutKey   string
}

// SettleInput carries a reconciled payout outcome. The reconciler matches the
// webhook to a withdrawal by the transfer ID before calling Settle.
type SettleInput struct {
	GatewayReference string
	Succeeded        bool
	FailureReason    string
}

// SettleOutcome reports what Settle did. Changed is false on a redelivered
// outcome that the reconciler already applied.
type SettleOutcome struct {
	Withdrawal *models.Withdrawal
	Changed    bool
}

type service struct {
	tx         TxRunner
	repo       Repository
	ledgerRepo ledger.Repository
	payouts    PayoutClient
	emitter    Emitter
	logg       *logger.Logger
}

// NewService wires the withdrawal service.
func NewService(
	tx TxRunner,
	repo Repository,
	ledgerRepo ledger.Repository,
	payouts PayoutClient,
	emitter Emitter,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("withdrawal repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if payouts == nil {
		return nil, fmt.Errorf("payout client required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:         tx,
		repo:       repo,
		ledgerRepo: ledgerRepo,
		payouts:    payouts,
		emitter:    emitter,
		logg:       logg,
	}, nil
}

// Request reserves the balance, initiates the transfer, and attaches the
// transfer reference to the withdrawal. The pending row and its debit are
// committed before the gateway call so a crash or timeout mid-transfer never
// loses the record of money in flight, and a second request cannot spend the
// same funds while the first settles.
func (s *service) Request(ctx context.Context, input RequestInput) (*models.Withdrawal, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor is required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount must be positive")
	}
	if input.PayoutKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout key is required")
	}

	withdrawal := &models.Withdrawal{
		ID:          uuid.New(),
		UserID:      input.UserID,
		AmountCents: input.AmountCents,
		PayoutKey:   input.PayoutKey,
		Status:      enums.WithdrawalStatusPending,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		available, err := ledgerRepo.SumAvailable(ctx, input.UserID)
		if err != nil {
			return fmt.Errorf("reading available balance: %w", err)
		}
		if available < input.AmountCents {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("available balance %d is below requested %d", available, input.AmountCents))
		}

		if err := s.repo.WithTx(tx).Create(ctx, withdrawal); err != nil {
			return fmt.Errorf("creating withdrawal: %w", err)
		}

		debit := &models.LedgerEntry{
			ProfileID:   input.UserID,
			SourceType:  models.LedgerSourceWithdrawal,
			SourceID:    withdrawal.ID,
			Kind:        enums.LedgerEntryKindDebit,
			AmountCents: -input.AmountCents,
			Status:      enums.LedgerEntryStatusPending,
		}
		if err := ledgerRepo.Create(ctx, debit); err != nil {
			return fmt.Errorf("recording withdrawal debit: %w", err)
		}

		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalRequested,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.WithdrawalRequestedEvent{
				WithdrawalID: withdrawal.ID,
				UserID:       input.UserID,
				AmountCents:  input.AmountCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	transferID, err := s.payouts.CreateTransfer(ctx, stripe.TransferParams{
		AmountCents:   input.AmountCents,
		Destination:   input.PayoutKey,
		TransferGroup: withdrawal.ID.String(),
		Description:   "provider balance withdrawal",
	})
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"withdrawal_id": withdrawal.ID.String(),
		})
		if pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
			// Timeout or 5xx: the transfer may or may not exist. The row
			// stays pending without a reference until an operator or the
			// review queue resolves it.
			s.logg.Error(logCtx, "transfer outcome unknown, withdrawal left pending", err)
			return nil, err
		}
		if failErr := s.failRequest(ctx, withdrawal, err.Error()); failErr != nil {
			s.logg.Error(logCtx, "failing withdrawal after rejected transfer", failErr)
		}
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		withdrawal.GatewayReference = &transferID
		if err := s.repo.WithTx(tx).Save(ctx, withdrawal); err != nil {
			return fmt.Errorf("attaching transfer reference: %w", err)
		}
		if _, err := s.ledgerRepo.WithTx(tx).SetGatewayReferenceBySourceID(ctx, withdrawal.ID, transferID); err != nil {
			return fmt.Errorf("tagging withdrawal debit: %w", err)
		}
		return nil
	})
	if err != nil {
		// The transfer exists; its webhook will land in the review queue as
		// an unmatched reference.
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"withdrawal_id":     withdrawal.ID.String(),
			"gateway_reference": transferID,
		})
		s.logg.Error(logCtx, "recording transfer reference", err)
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"withdrawal_id": withdrawal.ID.String(),
		"amount_cents":  withdrawal.AmountCents,
	})
	s.logg.Info(logCtx, "withdrawal requested")
	return withdrawal, nil
}

// failRequest closes a withdrawal whose transfer the gateway definitively
// rejected: the row goes to failed and a compensating credit restores the
// reserved balance.
func (s *service) failRequest(ctx context.Context, withdrawal *models.Withdrawal, reason string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		withdrawal.Status = enums.WithdrawalStatusFailed
		withdrawal.FailureReason = &reason
		if err := s.repo.WithTx(tx).Save(ctx, withdrawal); err != nil {
			return fmt.Errorf("saving failed withdrawal: %w", err)
		}

		ledgerRepo := s.ledgerRepo.WithTx(tx)
		if _, err := ledgerRepo.UpdateStatusBySourceID(ctx, withdrawal.ID, enums.LedgerEntryStatusFailed); err != nil {
			return fmt.Errorf("failing withdrawal debit: %w", err)
		}
		credit := &models.LedgerEntry{
			ProfileID:   withdrawal.UserID,
			SourceType:  models.LedgerSourceWithdrawal,
			SourceID:    withdrawal.ID,
			Kind:        enums.LedgerEntryKindCredit,
			AmountCents: withdrawal.AmountCents,
			Status:      enums.LedgerEntryStatusCompleted,
		}
		if err := ledgerRepo.Create(ctx, credit); err != nil {
			return fmt.Errorf("restoring failed withdrawal: %w", err)
		}

		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalSettled,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Data: payloads.WithdrawalSettledEvent{
				WithdrawalID: withdrawal.ID,
				UserID:       withdrawal.UserID,
				AmountCents:  withdrawal.AmountCents,
				Status:       withdrawal.Status,
				SettledAt:    time.Now(),
			},
		})
	})
}

// Settle applies a reconciled payout outcome inside the reconciler's
// transaction. A failed payout restores the balance with a compensating
// credit so the debit and credit net to zero.
func (s *service) Settle(ctx context.Context, tx *gorm.DB, input SettleInput) (*SettleOutcome, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.GatewayReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway reference is required")
	}

	repo := s.repo.WithTx(tx)
	withdrawal, err := repo.FindByGatewayReference(ctx, input.GatewayReference)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no withdrawal for gateway reference")
		}
		return nil, fmt.Errorf("loading withdrawal: %w", err)
	}
	if withdrawal.Status.IsTerminal() {
		return &SettleOutcome{Withdrawal: withdrawal, Changed: false}, nil
	}

	ledgerRepo := s.ledgerRepo.WithTx(tx)

	if input.Succeeded {
		withdrawal.Status = enums.WithdrawalStatusCompleted
		if _, err := ledgerRepo.UpdateStatusByGatewayReference(ctx, input.GatewayReference, enums.LedgerEntryStatusCompleted); err != nil {
			return nil, fmt.Errorf("completing withdrawal debit: %w", err)
		}
	} else {
		withdrawal.Status = enums.WithdrawalStatusFailed
		if input.FailureReason != "" {
			reason := input.FailureReason
			withdrawal.FailureReason = &reason
		}
		if _, err := ledgerRepo.UpdateStatusByGatewayReference(ctx, input.GatewayReference, enums.LedgerEntryStatusFailed); err != nil {
			return nil, fmt.Errorf("failing withdrawal debit: %w", err)
		}
		credit := &models.LedgerEntry{
			ProfileID:   withdrawal.UserID,
			SourceType:  models.LedgerSourceWithdrawal,
			SourceID:    withdrawal.ID,
			Kind:        enums.LedgerEntryKindCredit,
			AmountCents: withdrawal.AmountCents,
			Status:      enums.LedgerEntryStatusCompleted,
		}
		if err := ledgerRepo.Create(ctx, credit); err != nil {
			return nil, fmt.Errorf("restoring failed withdrawal: %w", err)
		}
	}

	if err := repo.Save(ctx, withdrawal); err != nil {
		return nil, fmt.Errorf("saving withdrawal: %w", err)
	}

	err = s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventWithdrawalSettled,
		AggregateType: enums.AggregateWithdrawal,
		AggregateID:   withdrawal.ID,
		Data: payloads.WithdrawalSettledEvent{
			WithdrawalID: withdrawal.ID,
			UserID:       withdrawal.UserID,
			AmountCents:  withdrawal.AmountCents,
			Status:       withdrawal.Status,
			SettledAt:    time.Now(),
		},
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"withdrawal_id": withdrawal.ID.String(),
		"status":        withdrawal.Status,
	})
	s.logg.Info(logCtx, "withdrawal settled")
	return &SettleOutcome{Withdrawal: withdrawal, Changed: true}, nil
}

// Get returns one withdrawal owned by the user.
func (s *service) Get(ctx context.Context, withdrawalID, userID uuid.UUID) (*models.Withdrawal, error) {
	withdrawal, err := s.repo.FindByID(ctx, withdrawalID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal not found")
		}
		return nil, err
	}
	if withdrawal.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "withdrawal belongs to another user")
	}
	return withdrawal, nil
}

// List returns the user's withdrawals newest first.
func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Withdrawal, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor is required")
	}
	return s.repo.ListByUserID(ctx, userID, params)
}
