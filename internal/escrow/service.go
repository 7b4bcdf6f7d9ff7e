package escrow

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/internal/ledger"
	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/gateway"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
)

// GatewayClient is the slice of the payment gateway the escrow engine uses.
type GatewayClient interface {
	Charge(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error)
	Refund(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error)
}

// Service moves money between the client, the escrow hold, and the provider
// balance. Every movement is a pair of ledger entries written in the caller's
// transaction; the gateway is only contacted for charges and refunds.
type Service interface {
	Charge(ctx context.Context, tx *gorm.DB, input ChargeInput) (*ChargeOutcome, error)
	Release(ctx context.Context, tx *gorm.DB, input ReleaseInput) (*FeeSplit, error)
	Refund(ctx context.Context, tx *gorm.DB, input RefundInput) error
}

// ChargeInput captures what the PAY action needs to capture funds.
type ChargeInput struct {
	Contract       *models.Contract
	SourceID       string
	IdempotencyKey string
}

// ChargeOutcome reports the gateway charge and the resulting fee split.
type ChargeOutcome struct {
	GatewayChargeID string
	Split           FeeSplit
}

// ReleaseInput moves held funds to the provider's available balance.
type ReleaseInput struct {
	Contract *models.Contract
}

// RefundInput returns held funds to the client through the gateway.
type RefundInput struct {
	Contract *models.Contract
	Reason   string
}

type service struct {
	gateway    GatewayClient
	ledgerRepo ledger.Repository
	fees       *FeePolicy
	logg       *logger.Logger
}

// NewService wires the escrow engine.
func NewService(gw GatewayClient, ledgerRepo ledger.Repository, fees *FeePolicy, logg *logger.Logger) (Service, error) {
	if gw == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if fees == nil {
		return nil, fmt.Errorf("fee policy required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		gateway:    gw,
		ledgerRepo: ledgerRepo,
		fees:       fees,
		logg:       logg,
	}, nil
}

// Charge captures the full contract value from the client's payment source and
// records the escrow hold. A declined charge writes nothing.
func (s *service) Charge(ctx context.Context, tx *gorm.DB, input ChargeInput) (*ChargeOutcome, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	contract := input.Contract
	if contract == nil {
		return nil, fmt.Errorf("contract required")
	}
	if input.SourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}

	split, err := s.fees.Split(contract.CurrentValueCents, contract.ProviderPlanTier)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "computing fee split")
	}

	result, err := s.gateway.Charge(ctx, gateway.ChargeParams{
		AmountCents:    contract.CurrentValueCents,
		SourceID:       input.SourceID,
		ContractID:     contract.ID,
		IdempotencyKey: input.IdempotencyKey,
		Note:           fmt.Sprintf("escrow for %s", contract.EventName),
	})
	if err != nil {
		return nil, err
	}

	repo := s.ledgerRepo.WithTx(tx)
	chargeRef := result.ChargeID
	meta := s.splitMetadata(split)

	debit := &models.LedgerEntry{
		ProfileID:        contract.ClientID,
		SourceType:       models.LedgerSourceContract,
		SourceID:         contract.ID,
		Kind:             enums.LedgerEntryKindDebit,
		AmountCents:      -contract.CurrentValueCents,
		Status:           enums.LedgerEntryStatusCompleted,
		GatewayReference: &chargeRef,
		Metadata:         meta,
	}
	if err := repo.Create(ctx, debit); err != nil {
		return nil, fmt.Errorf("recording charge debit: %w", err)
	}

	hold := &models.LedgerEntry{
		ProfileID:        contract.ProviderID,
		SourceType:       models.LedgerSourceContract,
		SourceID:         contract.ID,
		Kind:             enums.LedgerEntryKindHold,
		AmountCents:      split.ProviderAmountCents,
		Status:           enums.LedgerEntryStatusHeld,
		GatewayReference: &chargeRef,
		Metadata:         meta,
	}
	if err := repo.Create(ctx, hold); err != nil {
		return nil, fmt.Errorf("recording escrow hold: %w", err)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"contract_id":       contract.ID.String(),
		"gateway_charge_id": chargeRef,
		"value_cents":       contract.CurrentValueCents,
		"fee_cents":         split.PlatformFeeCents,
	})
	s.logg.Info(logCtx, "escrow charged")

	return &ChargeOutcome{GatewayChargeID: chargeRef, Split: split}, nil
}

// Release moves the held provider amount to the available balance. Calling it
// twice for the same contract is a state error surfaced by the hold check.
func (s *service) Release(ctx context.Context, tx *gorm.DB, input ReleaseInput) (*FeeSplit, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	contract := input.Contract
	if contract == nil {
		return nil, fmt.Errorf("contract required")
	}

	repo := s.ledgerRepo.WithTx(tx)
	held, err := s.heldAmount(ctx, repo, contract)
	if err != nil {
		return nil, err
	}
	if held <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no funds held in escrow for contract")
	}

	split, err := s.fees.Split(contract.CurrentValueCents, contract.ProviderPlanTier)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "computing fee split")
	}
	meta := s.splitMetadata(split)

	reverseHold := &models.LedgerEntry{
		ProfileID:   contract.ProviderID,
		SourceType:  models.LedgerSourceContract,
		SourceID:    contract.ID,
		Kind:        enums.LedgerEntryKindHold,
		AmountCents: -held,
		Status:      enums.LedgerEntryStatusCompleted,
		Metadata:    meta,
	}
	if err := repo.Create(ctx, reverseHold); err != nil {
		return nil, fmt.Errorf("reversing escrow hold: %w", err)
	}

	release := &models.LedgerEntry{
		ProfileID:   contract.ProviderID,
		SourceType:  models.LedgerSourceContract,
		SourceID:    contract.ID,
		Kind:        enums.LedgerEntryKindRelease,
		AmountCents: held,
		Status:      enums.LedgerEntryStatusCompleted,
		Metadata:    meta,
	}
	if err := repo.Create(ctx, release); err != nil {
		return nil, fmt.Errorf("recording escrow release: %w", err)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"contract_id":  contract.ID.String(),
		"amount_cents": held,
	})
	s.logg.Info(logCtx, "escrow released")
	return &split, nil
}

// Refund returns the full contract value to the client via the gateway and
// reverses the escrow hold.
func (s *service) Refund(ctx context.Context, tx *gorm.DB, input RefundInput) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	contract := input.Contract
	if contract == nil {
		return fmt.Errorf("contract required")
	}
	if contract.GatewayChargeID == nil || *contract.GatewayChargeID == "" {
		return pkgerrors.New(pkgerrors.CodeRefundUnavailable, "contract has no captured charge")
	}

	repo := s.ledgerRepo.WithTx(tx)
	held, err := s.heldAmount(ctx, repo, contract)
	if err != nil {
		return err
	}
	if held <= 0 {
		return pkgerrors.New(pkgerrors.CodeRefundUnavailable, "no funds held in escrow for contract")
	}

	result, err := s.gateway.Refund(ctx, gateway.RefundParams{
		ChargeID:    *contract.GatewayChargeID,
		AmountCents: contract.CurrentValueCents,
		Reason:      input.Reason,
	})
	if err != nil {
		return err
	}

	refundRef := result.RefundID

	reverseHold := &models.LedgerEntry{
		ProfileID:        contract.ProviderID,
		SourceType:       models.LedgerSourceContract,
		SourceID:         contract.ID,
		Kind:             enums.LedgerEntryKindHold,
		AmountCents:      -held,
		Status:           enums.LedgerEntryStatusCompleted,
		GatewayReference: &refundRef,
	}
	if err := repo.Create(ctx, reverseHold); err != nil {
		return fmt.Errorf("reversing escrow hold: %w", err)
	}

	credit := &models.LedgerEntry{
		ProfileID:        contract.ClientID,
		SourceType:       models.LedgerSourceContract,
		SourceID:         contract.ID,
		Kind:             enums.LedgerEntryKindCredit,
		AmountCents:      contract.CurrentValueCents,
		Status:           enums.LedgerEntryStatusPending,
		GatewayReference: &refundRef,
	}
	if err := repo.Create(ctx, credit); err != nil {
		return fmt.Errorf("recording refund credit: %w", err)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"contract_id":       contract.ID.String(),
		"gateway_refund_id": refundRef,
		"value_cents":       contract.CurrentValueCents,
	})
	s.logg.Info(logCtx, "escrow refunded")
	return nil
}

// heldAmount nets the HOLD entries for the contract's provider.
func (s *service) heldAmount(ctx context.Context, repo ledger.Repository, contract *models.Contract) (int64, error) {
	entries, err := repo.ListBySourceID(ctx, contract.ID)
	if err != nil {
		return 0, err
	}
	var held int64
	for _, entry := range entries {
		if entry.Kind == enums.LedgerEntryKindHold && entry.ProfileID == contract.ProviderID {
			held += entry.AmountCents
		}
	}
	return held, nil
}

func (s *service) splitMetadata(split FeeSplit) json.RawMessage {
	meta, err := json.Marshal(map[string]int64{
		"value_cents":           split.ValueCents,
		"provider_amount_cents": split.ProviderAmountCents,
		"platform_fee_cents":    split.PlatformFeeCents,
		"fee_bps":               split.FeeBPS,
	})
	if err != nil {
		return nil
	}
	return meta
}
