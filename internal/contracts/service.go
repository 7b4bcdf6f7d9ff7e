package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/internal/escrow"
	"github.com/angelmondragon/gigbroker-backend/internal/history"
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

// TxRunner opens a database transaction for a unit of work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Emitter queues domain events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the single transition authority for contracts. Every mutation
// goes through Apply, which locks the row, checks the transition table, runs
// money effects, and writes the history entry in one transaction.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Contract, error)
	Apply(ctx context.Context, input ApplyInput) (*models.Contract, error)
	Get(ctx context.Context, contractID, actorID uuid.UUID) (*models.Contract, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Contract, error)
	History(ctx context.Context, contractID, actorID uuid.UUID) ([]models.ContractHistoryEntry, error)
}

// CreateInput proposes a new contract from the client to the provider.
type CreateInput struct {
	ClientID         uuid.UUID
	ProviderID       uuid.UUID
	ValueCents       int64
	EventName        string
	EventDate        time.Time
	EventLocation    string
	ProviderPlanTier enums.ProviderPlanTier
}

// ApplyInput carries one lifecycle action against a contract.
type ApplyInput struct {
	ContractID      uuid.UUID
	ActorID         uuid.UUID
	Action          enums.ContractAction
	NewValueCents   int64
	Reason          string
	PaymentSourceID string
	IdempotencyKey  string
	// AsMediator marks platform staff resolving a mediation. Set by the
	// controller from admin claims, never from contract membership.
	AsMediator bool
}

type service struct {
	tx          TxRunner
	repo        Repository
	historyRepo history.Repository
	escrow      escrow.Service
	emitter     Emitter
	metrics     *metrics.PlatformMetrics
	logg        *logger.Logger
}

// NewService wires the transition authority.
func NewService(
	tx TxRunner,
	repo Repository,
	historyRepo history.Repository,
	escrowSvc escrow.Service,
	emitter Emitter,
	m *metrics.PlatformMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("contract repository required")
	}
	if historyRepo == nil {
		return nil, fmt.Errorf("history repository required")
	}
	if escrowSvc == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:          tx,
		repo:        repo,
		historyRepo: historyRepo,
		escrow:      escrowSvc,
		emitter:     emitter,
		metrics:     m,
		logg:        logg,
	}, nil
}

// Create proposes a contract. The proposal itself is not a transition, so the
// history starts with the first accepted action.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Contract, error) {
	if input.ClientID == uuid.Nil || input.ProviderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client and provider are required")
	}
	if input.ClientID == input.ProviderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client and provider must be distinct")
	}
	if input.ValueCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract value must be positive")
	}
	if input.EventName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event name is required")
	}
	tier := input.ProviderPlanTier
	if tier == "" {
		tier = enums.PlanTierStandard
	}
	if !tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown provider plan tier")
	}

	contract := &models.Contract{
		ClientID:           input.ClientID,
		ProviderID:         input.ProviderID,
		StatusMaster:       enums.ContractStatusProposed,
		CurrentValueCents:  input.ValueCents,
		OriginalValueCents: input.ValueCents,
		EventName:          input.EventName,
		EventDate:          input.EventDate,
		EventLocation:      input.EventLocation,
		ProviderPlanTier:   tier,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, contract); err != nil {
			return fmt.Errorf("creating contract: %w", err)
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventContractCreated,
			AggregateType: enums.AggregateContract,
			AggregateID:   contract.ID,
			Actor:         &outbox.ActorRef{UserID: input.ClientID, Role: string(enums.PartyRoleClient)},
			Data: payloads.ContractCreatedEvent{
				ContractID: contract.ID,
				ClientID:   contract.ClientID,
				ProviderID: contract.ProviderID,
				ValueCents: contract.CurrentValueCents,
				EventName:  contract.EventName,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithContractID(ctx, contract.ID.String())
	s.logg.Info(logCtx, "contract proposed")
	return contract, nil
}

// Apply runs one lifecycle action. The contract row is locked for the whole
// transaction, so concurrent actions against the same contract serialize and
// the loser re-evaluates against the committed status.
func (s *service) Apply(ctx context.Context, input ApplyInput) (*models.Contract, error) {
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown contract action")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor is required")
	}

	var contract *models.Contract
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := repo.FindByIDForUpdate(ctx, input.ContractID)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
			}
			return fmt.Errorf("loading contract: %w", err)
		}

		role, err := s.resolveRole(locked, input)
		if err != nil {
			return err
		}

		oldStatus := locked.StatusMaster
		oldValue := locked.CurrentValueCents

		target, ok := resolveTransition(oldStatus, input.Action, role)
		if !ok {
			s.metrics.IncTransitionRejected(string(input.Action))
			if !actionAllowedFromStatus(oldStatus, input.Action) {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("action %s is not allowed from status %s", input.Action, oldStatus))
			}
			return pkgerrors.New(pkgerrors.CodeForbidden,
				fmt.Sprintf("role %s may not perform %s", role, input.Action))
		}

		if actionRequiresValue(oldStatus, input.Action) {
			if input.NewValueCents <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "counter offer requires a positive value")
			}
			locked.CurrentValueCents = input.NewValueCents
		}

		if err := s.applyEffects(ctx, tx, locked, input, role, oldStatus, target); err != nil {
			return err
		}

		locked.StatusMaster = target
		if err := repo.Save(ctx, locked); err != nil {
			return fmt.Errorf("saving contract: %w", err)
		}

		entry := &models.ContractHistoryEntry{
			ContractID:    locked.ID,
			Action:        input.Action,
			PerformedBy:   input.ActorID,
			OldStatus:     oldStatus,
			NewStatus:     target,
			OldValueCents: oldValue,
			NewValueCents: locked.CurrentValueCents,
			Metadata:      s.historyMetadata(input, role),
		}
		if err := s.historyRepo.WithTx(tx).Append(ctx, entry); err != nil {
			return fmt.Errorf("appending history: %w", err)
		}

		if oldStatus != target {
			err := s.emitter.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventContractStateChanged,
				AggregateType: enums.AggregateContract,
				AggregateID:   locked.ID,
				Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(role)},
				Data: payloads.ContractStateChangedEvent{
					ContractID: locked.ID,
					ClientID:   locked.ClientID,
					ProviderID: locked.ProviderID,
					Action:     input.Action,
					OldStatus:  oldStatus,
					NewStatus:  target,
					ValueCents: locked.CurrentValueCents,
				},
			})
			if err != nil {
				return err
			}
		}

		contract = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(input.Action))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"contract_id": contract.ID.String(),
		"action":      input.Action,
		"status":      contract.StatusMaster,
	})
	s.logg.Info(logCtx, "contract transition applied")
	return contract, nil
}

// resolveRole maps the actor onto a contract party, or onto the mediator role
// for staff resolutions.
func (s *service) resolveRole(contract *models.Contract, input ApplyInput) (enums.PartyRole, error) {
	if input.AsMediator {
		return enums.PartyRoleMediator, nil
	}
	role, ok := contract.PartyRoleOf(input.ActorID)
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "actor is not a party to the contract")
	}
	return role, nil
}

// applyEffects runs the side effects an action carries before the status is
// persisted. Everything here shares the caller's transaction; the escrow
// service talks to the gateway and writes the ledger pairs.
func (s *service) applyEffects(
	ctx context.Context,
	tx *gorm.DB,
	contract *models.Contract,
	input ApplyInput,
	role enums.PartyRole,
	oldStatus, target enums.ContractStatus,
) error {
	now := time.Now()

	switch input.Action {
	case enums.ActionPay:
		outcome, err := s.escrow.Charge(ctx, tx, escrow.ChargeInput{
			Contract:       contract,
			SourceID:       input.PaymentSourceID,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		contract.GatewayChargeID = &outcome.GatewayChargeID
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEscrowCharged,
			AggregateType: enums.AggregateContract,
			AggregateID:   contract.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(role)},
			Data: payloads.EscrowChargedEvent{
				ContractID:          contract.ID,
				ClientID:            contract.ClientID,
				ProviderID:          contract.ProviderID,
				ValueCents:          outcome.Split.ValueCents,
				ProviderAmountCents: outcome.Split.ProviderAmountCents,
				PlatformFeeCents:    outcome.Split.PlatformFeeCents,
				GatewayChargeID:     outcome.GatewayChargeID,
			},
		})

	case enums.ActionSign:
		return s.recordSignature(contract, role, now)

	case enums.ActionOpenMediation:
		if input.Reason == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "mediation requires a reason")
		}
		reason := input.Reason
		contract.DisputeReason = &reason
		contract.DisputeOpenedAt = &now
		return nil

	case enums.ActionConfirmCompletion, enums.ActionResolveRelease:
		if target != enums.ContractStatusReleased {
			return nil
		}
		split, err := s.escrow.Release(ctx, tx, escrow.ReleaseInput{Contract: contract})
		if err != nil {
			return err
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEscrowReleased,
			AggregateType: enums.AggregateContract,
			AggregateID:   contract.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(role)},
			Data: payloads.EscrowReleasedEvent{
				ContractID:          contract.ID,
				ProviderID:          contract.ProviderID,
				ProviderAmountCents: split.ProviderAmountCents,
				ReleasedAt:          now,
			},
		})

	case enums.ActionCancel, enums.ActionReject:
		// Funds only exist after PAY; earlier cancellations have nothing
		// to unwind.
		if contract.GatewayChargeID == nil {
			return nil
		}
		err := s.escrow.Refund(ctx, tx, escrow.RefundInput{
			Contract: contract,
			Reason:   input.Reason,
		})
		if err != nil {
			return err
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEscrowRefunded,
			AggregateType: enums.AggregateContract,
			AggregateID:   contract.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(role)},
			Data: payloads.EscrowRefundedEvent{
				ContractID: contract.ID,
				ClientID:   contract.ClientID,
				ValueCents: contract.CurrentValueCents,
				Reason:     input.Reason,
			},
		})
	}

	return nil
}

func (s *service) recordSignature(contract *models.Contract, role enums.PartyRole, now time.Time) error {
	switch role {
	case enums.PartyRoleClient:
		if contract.ClientSignedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "client already signed")
		}
		contract.ClientSignedAt = &now
	case enums.PartyRoleProvider:
		if contract.ProviderSignedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "provider already signed")
		}
		contract.ProviderSignedAt = &now
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "only contract parties sign")
	}
	return nil
}

func (s *service) historyMetadata(input ApplyInput, role enums.PartyRole) json.RawMessage {
	meta := map[string]any{"role": role}
	if input.Reason != "" {
		meta["reason"] = input.Reason
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return raw
}

// Get returns a contract visible to one of its parties.
func (s *service) Get(ctx context.Context, contractID, actorID uuid.UUID) (*models.Contract, error) {
	contract, err := s.repo.FindByID(ctx, contractID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return nil, err
	}
	if _, ok := contract.PartyRoleOf(actorID); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor is not a party to the contract")
	}
	return contract, nil
}

// List returns the actor's contracts newest first.
func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Contract, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor is required")
	}
	return s.repo.ListByParticipant(ctx, userID, params)
}

// History returns the full append-only trail for a contract the actor is
// party to.
func (s *service) History(ctx context.Context, contractID, actorID uuid.UUID) ([]models.ContractHistoryEntry, error) {
	if _, err := s.Get(ctx, contractID, actorID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByContractID(ctx, contractID)
}
