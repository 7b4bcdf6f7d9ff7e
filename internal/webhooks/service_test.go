package webhooks

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/internal/ledger"
	"github.com/angelmondragon/gigbroker-backend/internal/withdrawals"
	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeStore struct {
	keys map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: make(map[string]string)}
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	return f.keys[key], nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = "1"
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "gb:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

type fakeLedgerRepo struct {
	matched map[string]bool
	updates map[string]enums.LedgerEntryStatus
	err     error
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{matched: make(map[string]bool), updates: make(map[string]enums.LedgerEntryStatus)}
}

func (f *fakeLedgerRepo) WithTx(tx *gorm.DB) ledger.Repository { return f }

func (f *fakeLedgerRepo) Create(ctx context.Context, entry *models.LedgerEntry) error { return nil }

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
	if f.err != nil {
		return 0, f.err
	}
	if !f.matched[reference] {
		return 0, nil
	}
	f.updates[reference] = status
	return 2, nil
}

func (f *fakeLedgerRepo) SetGatewayReferenceBySourceID(ctx context.Context, sourceID uuid.UUID, reference string) (int64, error) {
	return 0, nil
}

func (f *fakeLedgerRepo) UpdateStatusBySourceID(ctx context.Context, sourceID uuid.UUID, status enums.LedgerEntryStatus) (int64, error) {
	return 0, nil
}

func (f *fakeLedgerRepo) SumPending(ctx context.Context, profileID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeLedgerRepo) SumAvailable(ctx context.Context, profileID uuid.UUID) (int64, error) {
	return 0, nil
}

type fakeWithdrawalSvc struct {
	known    map[string]*models.Withdrawal
	settled  []withdrawals.SettleInput
	terminal bool
}

func newFakeWithdrawalSvc() *fakeWithdrawalSvc {
	return &fakeWithdrawalSvc{known: make(map[string]*models.Withdrawal)}
}

func (f *fakeWithdrawalSvc) Request(ctx context.Context, input withdrawals.RequestInput) (*models.Withdrawal, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeWithdrawalSvc) Settle(ctx context.Context, tx *gorm.DB, input withdrawals.SettleInput) (*withdrawals.SettleOutcome, error) {
	withdrawal, ok := f.known[input.GatewayReference]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no withdrawal for gateway reference")
	}
	if f.terminal {
		return &withdrawals.SettleOutcome{Withdrawal: withdrawal, Changed: false}, nil
	}
	f.settled = append(f.settled, input)
	return &withdrawals.SettleOutcome{Withdrawal: withdrawal, Changed: true}, nil
}

func (f *fakeWithdrawalSvc) Get(ctx context.Context, withdrawalID, userID uuid.UUID) (*models.Withdrawal, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeWithdrawalSvc) List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Withdrawal, error) {
	return nil, errors.New("not implemented")
}

type fakeReviewRepo struct {
	reviews []*models.WebhookReview
}

func (f *fakeReviewRepo) WithTx(tx *gorm.DB) ReviewRepository { return f }

func (f *fakeReviewRepo) Create(ctx context.Context, review *models.WebhookReview) error {
	for _, existing := range f.reviews {
		if existing.EventID == review.EventID {
			return errors.New(`duplicate key value violates unique constraint "ux_webhook_reviews_event"`)
		}
	}
	f.reviews = append(f.reviews, review)
	return nil
}

func (f *fakeReviewRepo) FindByEventID(ctx context.Context, eventID string) (*models.WebhookReview, error) {
	for _, review := range f.reviews {
		if review.EventID == eventID {
			return review, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReviewRepo) ListOpen(ctx context.Context, limit int) ([]models.WebhookReview, error) {
	var out []models.WebhookReview
	for _, review := range f.reviews {
		if review.ReviewedAt == nil {
			out = append(out, *review)
		}
	}
	return out, nil
}

func (f *fakeReviewRepo) MarkReviewed(ctx context.Context, id uuid.UUID) error {
	for _, review := range f.reviews {
		if review.ID == id {
			now := time.Now()
			review.ReviewedAt = &now
			return nil
		}
	}
	return nil
}

type harness struct {
	svc         Service
	store       *fakeStore
	ledger      *fakeLedgerRepo
	withdrawals *fakeWithdrawalSvc
	reviews     *fakeReviewRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:       newFakeStore(),
		ledger:      newFakeLedgerRepo(),
		withdrawals: newFakeWithdrawalSvc(),
		reviews:     &fakeReviewRepo{},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(&fakeTxRunner{}, h.ledger, h.withdrawals, h.reviews, h.store, nil, logg)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	h.svc = svc
	return h
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want statusClass
	}{
		{"COMPLETED", statusSuccess},
		{"payment.captured", statusSuccess},
		{"transfer.paid", statusSuccess},
		{"FAILED", statusFailure},
		{"payment.capture_failed", statusFailure},
		{"refund.declined", statusFailure},
		{"CANCELED", statusFailure},
		{"PENDING", statusPending},
		{"transfer.in_transit", statusPending},
		{"payment.processing", statusPending},
		{"", statusUnknown},
		{"weird_state_42", statusUnknown},
	}
	for _, tc := range tests {
		if got := classifyStatus(tc.raw); got != tc.want {
			t.Fatalf("classifyStatus(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestService_ProcessAppliesLedgerMatch(t *testing.T) {
	h := newHarness(t)
	h.ledger.matched["ch_123"] = true

	outcome, err := h.svc.Process(context.Background(), Event{
		EventID:    "evt_1",
		ExternalID: "ch_123",
		RawStatus:  "payment.captured",
	})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", outcome)
	}
	if h.ledger.updates["ch_123"] != enums.LedgerEntryStatusCompleted {
		t.Fatalf("ledger not completed: %v", h.ledger.updates)
	}
}

func TestService_ProcessFailureStatusMarksFailed(t *testing.T) {
	h := newHarness(t)
	h.ledger.matched["re_9"] = true

	outcome, err := h.svc.Process(context.Background(), Event{
		EventID:    "evt_2",
		ExternalID: "re_9",
		RawStatus:  "refund.failed",
	})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", outcome)
	}
	if h.ledger.updates["re_9"] != enums.LedgerEntryStatusFailed {
		t.Fatalf("ledger not failed: %v", h.ledger.updates)
	}
}

func TestService_ProcessSettlesWithdrawalFirst(t *testing.T) {
	h := newHarness(t)
	h.withdrawals.known["tr_7"] = &models.Withdrawal{ID: uuid.New()}
	h.ledger.matched["tr_7"] = true

	outcome, err := h.svc.Process(context.Background(), Event{
		EventID:    "evt_3",
		ExternalID: "tr_7",
		RawStatus:  "transfer.paid",
	})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", outcome)
	}
	if len(h.withdrawals.settled) != 1 {
		t.Fatalf("expected withdrawal settle, got %d", len(h.withdrawals.settled))
	}
	// The withdrawal path owns the reference; the raw ledger update must not run.
	if len(h.ledger.updates) != 0 {
		t.Fatalf("ledger updated alongside withdrawal settle: %v", h.ledger.updates)
	}
}

func TestService_ProcessDuplicateDelivery(t *testing.T) {
	h := newHarness(t)
	h.ledger.matched["ch_123"] = true
	event := Event{EventID: "evt_4", ExternalID: "ch_123", RawStatus: "COMPLETED"}

	if _, err := h.svc.Process(context.Background(), event); err != nil {
		t.Fatalf("first Process error: %v", err)
	}
	outcome, err := h.svc.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("second Process error: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("outcome = %s, want duplicate", outcome)
	}
}

func TestService_ProcessUnmatchedGoesToReview(t *testing.T) {
	h := newHarness(t)

	outcome, err := h.svc.Process(context.Background(), Event{
		EventID:     "evt_5",
		ExternalID:  "ch_unknown",
		RawStatus:   "COMPLETED",
		AmountCents: 5000,
	})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome != OutcomeReview {
		t.Fatalf("outcome = %s, want review", outcome)
	}
	if len(h.reviews.reviews) != 1 {
		t.Fatalf("expected 1 review row, got %d", len(h.reviews.reviews))
	}
	review := h.reviews.reviews[0]
	if review.Reason != "unmatched reference" || review.ExternalID != "ch_unknown" {
		t.Fatalf("unexpected review row: %+v", review)
	}
}

func TestService_ProcessUnknownStatusGoesToReview(t *testing.T) {
	h := newHarness(t)
	h.ledger.matched["ch_123"] = true

	outcome, err := h.svc.Process(context.Background(), Event{
		EventID:    "evt_6",
		ExternalID: "ch_123",
		RawStatus:  "weird_state_42",
	})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome != OutcomeReview {
		t.Fatalf("outcome = %s, want review", outcome)
	}
	// An ambiguous status must never touch the ledger, even on a match.
	if len(h.ledger.updates) != 0 {
		t.Fatalf("ambiguous status applied to ledger: %v", h.ledger.updates)
	}
	if h.reviews.reviews[0].Reason != "unrecognized status" {
		t.Fatalf("unexpected reason %q", h.reviews.reviews[0].Reason)
	}
}

func TestService_ProcessPendingIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.withdrawals.known["tr_7"] = &models.Withdrawal{ID: uuid.New()}
	h.ledger.matched["tr_7"] = true

	outcome, err := h.svc.Process(context.Background(), Event{
		EventID:    "evt_pending",
		ExternalID: "tr_7",
		RawStatus:  "transfer.in_transit",
	})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome != OutcomePending {
		t.Fatalf("outcome = %s, want pending", outcome)
	}
	// An in-flight notification is acked without touching anything.
	if len(h.withdrawals.settled) != 0 {
		t.Fatalf("pending status settled a withdrawal: %+v", h.withdrawals.settled)
	}
	if len(h.ledger.updates) != 0 {
		t.Fatalf("pending status touched the ledger: %v", h.ledger.updates)
	}
	if len(h.reviews.reviews) != 0 {
		t.Fatalf("pending status queued a review: %d", len(h.reviews.reviews))
	}
}

func TestService_ProcessErrorReleasesMarker(t *testing.T) {
	h := newHarness(t)
	h.ledger.matched["ch_123"] = true
	h.ledger.err = errors.New("connection reset")
	event := Event{EventID: "evt_7", ExternalID: "ch_123", RawStatus: "COMPLETED"}

	if _, err := h.svc.Process(context.Background(), event); err == nil {
		t.Fatal("expected error from ledger failure")
	}

	// The retry must run the pipeline again, not short-circuit as duplicate.
	h.ledger.err = nil
	outcome, err := h.svc.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("retry Process error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied on retry", outcome)
	}
}

func TestService_ProcessValidation(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.Process(context.Background(), Event{ExternalID: "ch_1"}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for event id, got %v", err)
	}
	if _, err := h.svc.Process(context.Background(), Event{EventID: "evt_1"}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for external id, got %v", err)
	}
}

func TestService_ResolveReview(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.Process(context.Background(), Event{
		EventID:    "evt_8",
		ExternalID: "ch_unknown",
		RawStatus:  "COMPLETED",
	}); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if err := h.svc.ResolveReview(context.Background(), "evt_8"); err != nil {
		t.Fatalf("ResolveReview error: %v", err)
	}
	open, err := h.svc.ListOpenReviews(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListOpenReviews error: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open reviews, got %d", len(open))
	}

	if err := h.svc.ResolveReview(context.Background(), "evt_8"); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on double resolve, got %v", err)
	}
	if err := h.svc.ResolveReview(context.Background(), "evt_missing"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
