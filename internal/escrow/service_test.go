package escrow

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/internal/ledger"
	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/gateway"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
)

type stubGateway struct {
	chargeFn func(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error)
	refundFn func(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error)
}

func (s *stubGateway) Charge(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
	if s.chargeFn != nil {
		return s.chargeFn(ctx, params)
	}
	return &gateway.ChargeResult{ChargeID: "ch_test", Status: "COMPLETED"}, nil
}

func (s *stubGateway) Refund(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error) {
	if s.refundFn != nil {
		return s.refundFn(ctx, params)
	}
	return &gateway.RefundResult{RefundID: "re_test", Status: "COMPLETED"}, nil
}

type recordingLedgerRepo struct {
	entries []*models.LedgerEntry
}

func (r *recordingLedgerRepo) WithTx(tx *gorm.DB) ledger.Repository { return r }

func (r *recordingLedgerRepo) Create(ctx context.Context, entry *models.LedgerEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingLedgerRepo) ListBySourceID(ctx context.Context, sourceID uuid.UUID) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, entry := range r.entries {
		if entry.SourceID == sourceID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (r *recordingLedgerRepo) ListByProfileID(ctx context.Context, profileID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (r *recordingLedgerRepo) FindByGatewayReference(ctx context.Context, reference string) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (r *recordingLedgerRepo) UpdateStatusByGatewayReference(ctx context.Context, reference string, status enums.LedgerEntryStatus) (int64, error) {
	return 0, nil
}

func (r *recordingLedgerRepo) SetGatewayReferenceBySourceID(ctx context.Context, sourceID uuid.UUID, reference string) (int64, error) {
	return 0, nil
}

func (r *recordingLedgerRepo) UpdateStatusBySourceID(ctx context.Context, sourceID uuid.UUID, status enums.LedgerEntryStatus) (int64, error) {
	return 0, nil
}

func (r *recordingLedgerRepo) SumPending(ctx context.Context, profileID uuid.UUID) (int64, error) {
	return 0, nil
}

func (r *recordingLedgerRepo) SumAvailable(ctx context.Context, profileID uuid.UUID) (int64, error) {
	return 0, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testContract() *models.Contract {
	return &models.Contract{
		ID:                 uuid.New(),
		ClientID:           uuid.New(),
		ProviderID:         uuid.New(),
		StatusMaster:       enums.ContractStatusAwaitingPayment,
		CurrentValueCents:  100000,
		OriginalValueCents: 100000,
		EventName:          "wedding set",
		ProviderPlanTier:   enums.PlanTierStandard,
	}
}

func newTestService(t *testing.T, gw GatewayClient, repo ledger.Repository) Service {
	t.Helper()
	svc, err := NewService(gw, repo, testFeePolicy(t), testLogger())
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_ChargeWritesDebitAndHold(t *testing.T) {
	repo := &recordingLedgerRepo{}
	svc := newTestService(t, &stubGateway{}, repo)
	contract := testContract()

	outcome, err := svc.Charge(context.Background(), &gorm.DB{}, ChargeInput{
		Contract: contract,
		SourceID: "cnon:card-nonce",
	})
	if err != nil {
		t.Fatalf("Charge error: %v", err)
	}
	if outcome.GatewayChargeID != "ch_test" {
		t.Fatalf("unexpected charge id %s", outcome.GatewayChargeID)
	}
	if len(repo.entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(repo.entries))
	}

	debit, hold := repo.entries[0], repo.entries[1]
	if debit.Kind != enums.LedgerEntryKindDebit || debit.ProfileID != contract.ClientID {
		t.Fatalf("unexpected debit entry: %+v", debit)
	}
	if debit.AmountCents != -100000 {
		t.Fatalf("debit amount = %d, want -100000", debit.AmountCents)
	}
	if hold.Kind != enums.LedgerEntryKindHold || hold.ProfileID != contract.ProviderID {
		t.Fatalf("unexpected hold entry: %+v", hold)
	}
	if hold.AmountCents != 90000 {
		t.Fatalf("hold amount = %d, want 90000", hold.AmountCents)
	}
	if hold.GatewayReference == nil || *hold.GatewayReference != "ch_test" {
		t.Fatalf("hold missing gateway reference: %+v", hold)
	}
}

func TestService_ChargeDeclinedWritesNothing(t *testing.T) {
	repo := &recordingLedgerRepo{}
	gw := &stubGateway{
		chargeFn: func(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, "card declined")
		},
	}
	svc := newTestService(t, gw, repo)

	_, err := svc.Charge(context.Background(), &gorm.DB{}, ChargeInput{
		Contract: testContract(),
		SourceID: "cnon:card-nonce",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentDeclined) {
		t.Fatalf("expected payment declined error, got %v", err)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("declined charge must write nothing, wrote %d entries", len(repo.entries))
	}
}

func TestService_ReleaseMovesHeldFunds(t *testing.T) {
	repo := &recordingLedgerRepo{}
	svc := newTestService(t, &stubGateway{}, repo)
	contract := testContract()

	if _, err := svc.Charge(context.Background(), &gorm.DB{}, ChargeInput{
		Contract: contract,
		SourceID: "cnon:card-nonce",
	}); err != nil {
		t.Fatalf("Charge error: %v", err)
	}

	split, err := svc.Release(context.Background(), &gorm.DB{}, ReleaseInput{Contract: contract})
	if err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if split.ProviderAmountCents != 90000 {
		t.Fatalf("released amount = %d, want 90000", split.ProviderAmountCents)
	}
	if len(repo.entries) != 4 {
		t.Fatalf("expected 4 ledger entries, got %d", len(repo.entries))
	}

	var holdNet int64
	for _, entry := range repo.entries {
		if entry.Kind == enums.LedgerEntryKindHold {
			holdNet += entry.AmountCents
		}
	}
	if holdNet != 0 {
		t.Fatalf("hold entries must net to zero after release, got %d", holdNet)
	}

	// Second release finds no held funds.
	if _, err := svc.Release(context.Background(), &gorm.DB{}, ReleaseInput{Contract: contract}); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on double release, got %v", err)
	}
}

func TestService_RefundRequiresCapturedCharge(t *testing.T) {
	repo := &recordingLedgerRepo{}
	svc := newTestService(t, &stubGateway{}, repo)

	err := svc.Refund(context.Background(), &gorm.DB{}, RefundInput{Contract: testContract()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeRefundUnavailable) {
		t.Fatalf("expected refund unavailable, got %v", err)
	}
}

func TestService_RefundReversesHoldAndCreditsClient(t *testing.T) {
	repo := &recordingLedgerRepo{}
	svc := newTestService(t, &stubGateway{}, repo)
	contract := testContract()

	outcome, err := svc.Charge(context.Background(), &gorm.DB{}, ChargeInput{
		Contract: contract,
		SourceID: "cnon:card-nonce",
	})
	if err != nil {
		t.Fatalf("Charge error: %v", err)
	}
	contract.GatewayChargeID = &outcome.GatewayChargeID

	if err := svc.Refund(context.Background(), &gorm.DB{}, RefundInput{
		Contract: contract,
		Reason:   "cancelled before event",
	}); err != nil {
		t.Fatalf("Refund error: %v", err)
	}

	if len(repo.entries) != 4 {
		t.Fatalf("expected 4 ledger entries, got %d", len(repo.entries))
	}
	credit := repo.entries[3]
	if credit.Kind != enums.LedgerEntryKindCredit || credit.ProfileID != contract.ClientID {
		t.Fatalf("unexpected credit entry: %+v", credit)
	}
	if credit.AmountCents != 100000 {
		t.Fatalf("credit amount = %d, want 100000", credit.AmountCents)
	}
}
