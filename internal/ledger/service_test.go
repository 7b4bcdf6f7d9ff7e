package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

type fakeRepository struct {
	createFn    func(ctx context.Context, entry *models.LedgerEntry) error
	bySourceFn  func(ctx context.Context, sourceID uuid.UUID) ([]models.LedgerEntry, error)
	pendingFn   func(ctx context.Context, profileID uuid.UUID) (int64, error)
	availableFn func(ctx context.Context, profileID uuid.UUID) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if f.createFn != nil {
		return f.createFn(ctx, entry)
	}
	return nil
}

func (f *fakeRepository) ListBySourceID(ctx context.Context, sourceID uuid.UUID) ([]models.LedgerEntry, error) {
	if f.bySourceFn != nil {
		return f.bySourceFn(ctx, sourceID)
	}
	return nil, nil
}

func (f *fakeRepository) ListByProfileID(ctx context.Context, profileID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeRepository) FindByGatewayReference(ctx context.Context, reference string) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeRepository) UpdateStatusByGatewayReference(ctx context.Context, reference string, status enums.LedgerEntryStatus) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) SetGatewayReferenceBySourceID(ctx context.Context, sourceID uuid.UUID, reference string) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) UpdateStatusBySourceID(ctx context.Context, sourceID uuid.UUID, status enums.LedgerEntryStatus) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) SumPending(ctx context.Context, profileID uuid.UUID) (int64, error) {
	if f.pendingFn != nil {
		return f.pendingFn(ctx, profileID)
	}
	return 0, nil
}

func (f *fakeRepository) SumAvailable(ctx context.Context, profileID uuid.UUID) (int64, error) {
	if f.availableFn != nil {
		return f.availableFn(ctx, profileID)
	}
	return 0, nil
}

func TestService_Record(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	metadata := json.RawMessage(`{"note":"escrow hold"}`)
	input := RecordEntryInput{
		ProfileID:   uuid.New(),
		SourceID:    uuid.New(),
		Kind:        enums.LedgerEntryKindHold,
		AmountCents: 90000,
		Status:      enums.LedgerEntryStatusHeld,
		Metadata:    metadata,
	}

	var created *models.LedgerEntry
	repo.createFn = func(ctx context.Context, entry *models.LedgerEntry) error {
		created = entry
		return nil
	}

	got, err := svc.Record(context.Background(), input)
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if created == nil {
		t.Fatal("expected ledger entry to be created")
	}
	if created.ProfileID != input.ProfileID || created.Kind != input.Kind || created.AmountCents != input.AmountCents {
		t.Fatalf("unexpected ledger entry data: %+v", created)
	}
	if created.SourceType != models.LedgerSourceContract {
		t.Fatalf("expected default source type CONTRACT, got %s", created.SourceType)
	}
	if created.Status != enums.LedgerEntryStatusHeld {
		t.Fatalf("unexpected status: %s", created.Status)
	}
	if string(created.Metadata) != string(metadata) {
		t.Fatalf("metadata mismatch: %s", created.Metadata)
	}
	if got != created {
		t.Fatal("service should return created entry")
	}
}

func TestService_RecordValidation(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name  string
		input RecordEntryInput
	}{
		{
			name: "missing profile id",
			input: RecordEntryInput{
				SourceID:    uuid.New(),
				Kind:        enums.LedgerEntryKindHold,
				AmountCents: 100,
			},
		},
		{
			name: "missing source id",
			input: RecordEntryInput{
				ProfileID:   uuid.New(),
				Kind:        enums.LedgerEntryKindHold,
				AmountCents: 100,
			},
		},
		{
			name: "invalid kind",
			input: RecordEntryInput{
				ProfileID:   uuid.New(),
				SourceID:    uuid.New(),
				Kind:        enums.LedgerEntryKind("not_real"),
				AmountCents: 100,
			},
		},
		{
			name: "zero amount",
			input: RecordEntryInput{
				ProfileID: uuid.New(),
				SourceID:  uuid.New(),
				Kind:      enums.LedgerEntryKindDebit,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Record(context.Background(), tc.input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_Balance(t *testing.T) {
	profileID := uuid.New()
	repo := &fakeRepository{
		pendingFn: func(ctx context.Context, id uuid.UUID) (int64, error) {
			if id != profileID {
				t.Fatalf("unexpected profile id %s", id)
			}
			return 90000, nil
		},
		availableFn: func(ctx context.Context, id uuid.UUID) (int64, error) {
			return 45000, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	balance, err := svc.Balance(context.Background(), profileID)
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if balance.PendingCents != 90000 || balance.AvailableCents != 45000 {
		t.Fatalf("unexpected balance: %+v", balance)
	}
}

func TestService_HasEntry(t *testing.T) {
	sourceID := uuid.New()
	repo := &fakeRepository{
		bySourceFn: func(ctx context.Context, id uuid.UUID) ([]models.LedgerEntry, error) {
			return []models.LedgerEntry{
				{SourceID: id, Kind: enums.LedgerEntryKindDebit, AmountCents: -100000},
				{SourceID: id, Kind: enums.LedgerEntryKindHold, AmountCents: 90000},
			}, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	has, err := svc.HasEntry(context.Background(), sourceID, enums.LedgerEntryKindHold)
	if err != nil {
		t.Fatalf("HasEntry error: %v", err)
	}
	if !has {
		t.Fatal("expected hold entry to be found")
	}

	has, err = svc.HasEntry(context.Background(), sourceID, enums.LedgerEntryKindRelease)
	if err != nil {
		t.Fatalf("HasEntry error: %v", err)
	}
	if has {
		t.Fatal("did not expect release entry")
	}
}

func TestService_RecordRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	expectedErr := errors.New("boom")
	repo.createFn = func(ctx context.Context, entry *models.LedgerEntry) error {
		return expectedErr
	}

	if _, err := svc.Record(context.Background(), RecordEntryInput{
		ProfileID:   uuid.New(),
		SourceID:    uuid.New(),
		Kind:        enums.LedgerEntryKindRelease,
		AmountCents: 90000,
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}
