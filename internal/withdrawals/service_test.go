package withdrawals

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
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox"
	"github.com/angelmondragon/gigbroker-backend/pkg/pagination"
	"github.com/angelmondragon/gigbroker-backend/pkg/stripe"
)

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeWithdrawalRepo struct {
	rows map[uuid.UUID]*models.Withdrawal
}

func newFakeWithdrawalRepo() *fakeWithdrawalRepo {
	return &fakeWithdrawalRepo{rows: make(map[uuid.UUID]*models.Withdrawal)}
}

func (f *fakeWithdrawalRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeWithdrawalRepo) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	clone := *withdrawal
	f.rows[withdrawal.ID] = &clone
	return nil
}

func (f *fakeWithdrawalRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	return &clone, nil
}

func (f *fakeWithdrawalRepo) FindByGatewayReference(ctx context.Context, reference string) (*models.Withdrawal, error) {
	for _, row := range f.rows {
		if row.GatewayReference != nil && *row.GatewayReference == reference {
			clone := *row
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeWithdrawalRepo) Save(ctx context.Context, withdrawal *models.Withdrawal) error {
	clone := *withdrawal
	f.rows[withdrawal.ID] = &clone
	return nil
}

func (f *fakeWithdrawalRepo) ListByUserID(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	for _, row := range f.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, nil
}

type fakeLedgerRepo struct {
	available      int64
	entries        []*models.LedgerEntry
	statusUpdates  map[string]enums.LedgerEntryStatus
	availableDebit bool
}

func newFakeLedgerRepo(available int64) *fakeLedgerRepo {
	return &fakeLedgerRepo{available: available, statusUpdates: make(map[string]enums.LedgerEntryStatus)}
}

func (f *fakeLedgerRepo) WithTx(tx *gorm.DB) ledger.Repository { return f }

func (f *fakeLedgerRepo) Create(ctx context.Context, entry *models.LedgerEntry) error {
	f.entries = append(f.entries, entry)
	if f.availableDebit {
		f.available += entry.AmountCents
	}
	return nil
}

func (f *fakeLedgerRepo) ListBySourceID(ctx context.Context, sourceID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) ListByProfileID(ctx context.Context, profileID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) FindByGatewayReference(ctx context.Context, reference string) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) UpdateStatusByGatewayReference(ctx context.Context, reference string, status enums.LedgerEntryStatus) (int64, error) {
	f.statusUpdates[reference] = status
	return 1, nil
}

func (f *fakeLedgerRepo) SetGatewayReferenceBySourceID(ctx context.Context, sourceID uuid.UUID, reference string) (int64, error) {
	var n int64
	for _, entry := range f.entries {
		if entry.SourceID == sourceID && entry.GatewayReference == nil {
			ref := reference
			entry.GatewayReference = &ref
			n++
		}
	}
	return n, nil
}

func (f *fakeLedgerRepo) UpdateStatusBySourceID(ctx context.Context, sourceID uuid.UUID, status enums.LedgerEntryStatus) (int64, error) {
	var n int64
	for _, entry := range f.entries {
		if entry.SourceID == sourceID && entry.Status == enums.LedgerEntryStatusPending {
			entry.Status = status
			n++
		}
	}
	return n, nil
}

func (f *fakeLedgerRepo) SumPending(ctx context.Context, profileID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeLedgerRepo) SumAvailable(ctx context.Context, profileID uuid.UUID) (int64, error) {
	return f.available, nil
}

type fakePayouts struct {
	transfers []stripe.TransferParams
	err       error
}

func (f *fakePayouts) CreateTransfer(ctx context.Context, params stripe.TransferParams) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.transfers = append(f.transfers, params)
	return "tr_test", nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type harness struct {
	svc     Service
	repo    *fakeWithdrawalRepo
	ledger  *fakeLedgerRepo
	payouts *fakePayouts
	emitter *fakeEmitter
}

func newHarness(t *testing.T, available int64) *harness {
	t.Helper()
	h := &harness{
		repo:    newFakeWithdrawalRepo(),
		ledger:  newFakeLedgerRepo(available),
		payouts: &fakePayouts{},
		emitter: &fakeEmitter{},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(&fakeTxRunner{}, h.repo, h.ledger, h.payouts, h.emitter, logg)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	h.svc = svc
	return h
}

func TestService_RequestHappyPath(t *testing.T) {
	h := newHarness(t, 50000)
	userID := uuid.New()

	withdrawal, err := h.svc.Request(context.Background(), RequestInput{
		UserID:      userID,
		AmountCents: 30000,
		PayoutKey:   "acct_provider",
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if withdrawal.Status != enums.WithdrawalStatusPending {
		t.Fatalf("status = %s, want pending", withdrawal.Status)
	}
	if withdrawal.GatewayReference == nil || *withdrawal.GatewayReference != "tr_test" {
		t.Fatalf("transfer id not recorded: %+v", withdrawal.GatewayReference)
	}

	if len(h.payouts.transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(h.payouts.transfers))
	}
	if h.payouts.transfers[0].Destination != "acct_provider" {
		t.Fatalf("unexpected destination %s", h.payouts.transfers[0].Destination)
	}

	if len(h.ledger.entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(h.ledger.entries))
	}
	debit := h.ledger.entries[0]
	if debit.Kind != enums.LedgerEntryKindDebit || debit.AmountCents != -30000 {
		t.Fatalf("unexpected debit entry: %+v", debit)
	}
	if debit.SourceType != models.LedgerSourceWithdrawal || debit.SourceID != withdrawal.ID {
		t.Fatalf("debit not tied to withdrawal: %+v", debit)
	}
	if debit.GatewayReference == nil || *debit.GatewayReference != "tr_test" {
		t.Fatalf("debit not tagged with transfer id: %+v", debit.GatewayReference)
	}

	if len(h.emitter.events) != 1 || h.emitter.events[0].EventType != enums.EventWithdrawalRequested {
		t.Fatalf("expected withdrawal_requested event, got %+v", h.emitter.events)
	}
}

func TestService_RequestInsufficientBalance(t *testing.T) {
	h := newHarness(t, 10000)

	_, err := h.svc.Request(context.Background(), RequestInput{
		UserID:      uuid.New(),
		AmountCents: 30000,
		PayoutKey:   "acct_provider",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(h.payouts.transfers) != 0 {
		t.Fatal("insufficient balance must not reach the payout rail")
	}
	if len(h.ledger.entries) != 0 {
		t.Fatal("insufficient balance must not write ledger entries")
	}
}

func TestService_RequestValidation(t *testing.T) {
	h := newHarness(t, 50000)

	if _, err := h.svc.Request(context.Background(), RequestInput{
		UserID:      uuid.New(),
		AmountCents: 0,
		PayoutKey:   "acct_provider",
	}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for amount, got %v", err)
	}

	if _, err := h.svc.Request(context.Background(), RequestInput{
		UserID:      uuid.New(),
		AmountCents: 1000,
	}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for payout key, got %v", err)
	}
}

func TestService_RequestRejectedTransferFailsRow(t *testing.T) {
	h := newHarness(t, 50000)
	h.ledger.availableDebit = true
	h.payouts.err = pkgerrors.New(pkgerrors.CodeValidation, "no such destination account")

	_, err := h.svc.Request(context.Background(), RequestInput{
		UserID:      uuid.New(),
		AmountCents: 30000,
		PayoutKey:   "acct_gone",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if len(h.repo.rows) != 1 {
		t.Fatalf("expected the failed row to persist, got %d rows", len(h.repo.rows))
	}
	var row *models.Withdrawal
	for _, r := range h.repo.rows {
		row = r
	}
	if row.Status != enums.WithdrawalStatusFailed {
		t.Fatalf("status = %s, want failed", row.Status)
	}
	if row.FailureReason == nil || *row.FailureReason == "" {
		t.Fatalf("failure reason not recorded: %+v", row.FailureReason)
	}

	// Debit marked failed plus a compensating credit restoring the balance.
	if len(h.ledger.entries) != 2 {
		t.Fatalf("expected debit and credit, got %d entries", len(h.ledger.entries))
	}
	if h.ledger.entries[0].Status != enums.LedgerEntryStatusFailed {
		t.Fatalf("debit status = %s, want failed", h.ledger.entries[0].Status)
	}
	credit := h.ledger.entries[1]
	if credit.Kind != enums.LedgerEntryKindCredit || credit.AmountCents != 30000 {
		t.Fatalf("unexpected compensating credit: %+v", credit)
	}
	if h.ledger.available != 50000 {
		t.Fatalf("available = %d after rejected transfer, want 50000", h.ledger.available)
	}
	if len(h.emitter.events) != 2 || h.emitter.events[1].EventType != enums.EventWithdrawalSettled {
		t.Fatalf("expected requested then settled events, got %+v", h.emitter.events)
	}
}

func TestService_RequestTransferOutcomeUnknownLeavesPending(t *testing.T) {
	h := newHarness(t, 50000)
	h.payouts.err = pkgerrors.New(pkgerrors.CodeDependency, "stripe timeout")

	_, err := h.svc.Request(context.Background(), RequestInput{
		UserID:      uuid.New(),
		AmountCents: 30000,
		PayoutKey:   "acct_provider",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}

	// A timeout means the transfer may exist. The pending row keeps the funds
	// reserved until reconciliation decides.
	if len(h.repo.rows) != 1 {
		t.Fatalf("expected the pending row to persist, got %d rows", len(h.repo.rows))
	}
	var row *models.Withdrawal
	for _, r := range h.repo.rows {
		row = r
	}
	if row.Status != enums.WithdrawalStatusPending {
		t.Fatalf("status = %s, want pending", row.Status)
	}
	if row.GatewayReference != nil {
		t.Fatalf("unexpected gateway reference %q", *row.GatewayReference)
	}
	if len(h.ledger.entries) != 1 || h.ledger.entries[0].Status != enums.LedgerEntryStatusPending {
		t.Fatalf("expected a single pending debit, got %+v", h.ledger.entries)
	}
	if h.ledger.entries[0].GatewayReference != nil {
		t.Fatalf("debit tagged before transfer confirmed: %+v", h.ledger.entries[0].GatewayReference)
	}
	if len(h.emitter.events) != 1 || h.emitter.events[0].EventType != enums.EventWithdrawalRequested {
		t.Fatalf("expected only the requested event, got %+v", h.emitter.events)
	}
}

func TestService_SettleCompleted(t *testing.T) {
	h := newHarness(t, 50000)
	if _, err := h.svc.Request(context.Background(), RequestInput{
		UserID:      uuid.New(),
		AmountCents: 30000,
		PayoutKey:   "acct_provider",
	}); err != nil {
		t.Fatalf("Request error: %v", err)
	}

	outcome, err := h.svc.Settle(context.Background(), &gorm.DB{}, SettleInput{
		GatewayReference: "tr_test",
		Succeeded:        true,
	})
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
	if !outcome.Changed {
		t.Fatal("first settle must report a change")
	}
	if outcome.Withdrawal.Status != enums.WithdrawalStatusCompleted {
		t.Fatalf("status = %s, want completed", outcome.Withdrawal.Status)
	}
	if h.ledger.statusUpdates["tr_test"] != enums.LedgerEntryStatusCompleted {
		t.Fatalf("debit status not completed: %v", h.ledger.statusUpdates)
	}
	// No compensating credit on success.
	if len(h.ledger.entries) != 1 {
		t.Fatalf("expected only the original debit, got %d entries", len(h.ledger.entries))
	}

	// Redelivery is a no-op.
	again, err := h.svc.Settle(context.Background(), &gorm.DB{}, SettleInput{
		GatewayReference: "tr_test",
		Succeeded:        true,
	})
	if err != nil {
		t.Fatalf("Settle redelivery error: %v", err)
	}
	if again.Changed {
		t.Fatal("redelivered settle must not change anything")
	}
}

func TestService_SettleFailedRestoresBalance(t *testing.T) {
	h := newHarness(t, 50000)
	h.ledger.availableDebit = true

	withdrawal, err := h.svc.Request(context.Background(), RequestInput{
		UserID:      uuid.New(),
		AmountCents: 30000,
		PayoutKey:   "acct_provider",
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if h.ledger.available != 20000 {
		t.Fatalf("available = %d after debit, want 20000", h.ledger.available)
	}

	outcome, err := h.svc.Settle(context.Background(), &gorm.DB{}, SettleInput{
		GatewayReference: "tr_test",
		Succeeded:        false,
		FailureReason:    "destination account closed",
	})
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
	if outcome.Withdrawal.Status != enums.WithdrawalStatusFailed {
		t.Fatalf("status = %s, want failed", outcome.Withdrawal.Status)
	}
	if outcome.Withdrawal.FailureReason == nil || *outcome.Withdrawal.FailureReason != "destination account closed" {
		t.Fatalf("failure reason not recorded: %+v", outcome.Withdrawal.FailureReason)
	}

	// Debit plus compensating credit nets to the pre-withdrawal balance.
	if h.ledger.available != 50000 {
		t.Fatalf("available = %d after failed settle, want 50000", h.ledger.available)
	}
	credit := h.ledger.entries[len(h.ledger.entries)-1]
	if credit.Kind != enums.LedgerEntryKindCredit || credit.AmountCents != withdrawal.AmountCents {
		t.Fatalf("unexpected compensating credit: %+v", credit)
	}
	if h.ledger.statusUpdates["tr_test"] != enums.LedgerEntryStatusFailed {
		t.Fatalf("debit status not failed: %v", h.ledger.statusUpdates)
	}
}

func TestService_SettleUnknownReference(t *testing.T) {
	h := newHarness(t, 50000)

	_, err := h.svc.Settle(context.Background(), &gorm.DB{}, SettleInput{
		GatewayReference: "tr_unknown",
		Succeeded:        true,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_GetEnforcesOwnership(t *testing.T) {
	h := newHarness(t, 50000)
	withdrawal, err := h.svc.Request(context.Background(), RequestInput{
		UserID:      uuid.New(),
		AmountCents: 10000,
		PayoutKey:   "acct_provider",
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	if _, err := h.svc.Get(context.Background(), withdrawal.ID, uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	got, err := h.svc.Get(context.Background(), withdrawal.ID, withdrawal.UserID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != withdrawal.ID {
		t.Fatalf("unexpected withdrawal %s", got.ID)
	}
}
