package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

// Service defines operations that record and read ledger entries.
type Service interface {
	Record(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error)
	Balance(ctx context.Context, profileID uuid.UUID) (*Balance, error)
	Statement(ctx context.Context, profileID uuid.UUID, limit int) ([]models.LedgerEntry, error)
	EntriesForSource(ctx context.Context, sourceID uuid.UUID) ([]models.LedgerEntry, error)
	HasEntry(ctx context.Context, sourceID uuid.UUID, kind enums.LedgerEntryKind) (bool, error)
	WithRepo(repo Repository) Service
}

type service struct {
	repo Repository
}

// RecordEntryInput captures the immutable data a ledger entry requires.
// Amounts are signed: captures and releases are positive, reversals negative.
type RecordEntryInput struct {
	ProfileID        uuid.UUID              `json:"profile_id"`
	SourceType       string                 `json:"source_type"`
	SourceID         uuid.UUID              `json:"source_id"`
	Kind             enums.LedgerEntryKind  `json:"kind"`
	AmountCents      int64                  `json:"amount_cents"`
	Status           enums.LedgerEntryStatus `json:"status"`
	GatewayReference *string                `json:"gateway_reference,omitempty"`
	Metadata         json.RawMessage        `json:"metadata,omitempty"`
}

// Balance is the provider-facing money summary derived from the ledger.
type Balance struct {
	ProfileID      uuid.UUID `json:"profile_id"`
	AvailableCents int64     `json:"available_cents"`
	PendingCents   int64     `json:"pending_cents"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// WithRepo returns a service bound to a different repository, typically one
// scoped to an open transaction.
func (s *service) WithRepo(repo Repository) Service {
	if repo == nil {
		return s
	}
	return &service{repo: repo}
}

func (s *service) Record(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error) {
	if input.ProfileID == uuid.Nil {
		return nil, fmt.Errorf("profile id is required")
	}
	if input.SourceID == uuid.Nil {
		return nil, fmt.Errorf("source id is required")
	}
	if !input.Kind.IsValid() {
		return nil, fmt.Errorf("invalid ledger entry kind %q", input.Kind)
	}
	if input.AmountCents == 0 {
		return nil, fmt.Errorf("amount must be non-zero")
	}

	sourceType := input.SourceType
	if sourceType == "" {
		sourceType = models.LedgerSourceContract
	}
	status := input.Status
	if status == "" {
		status = enums.LedgerEntryStatusPending
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid ledger entry status %q", status)
	}

	entry := &models.LedgerEntry{
		ProfileID:        input.ProfileID,
		SourceType:       sourceType,
		SourceID:         input.SourceID,
		Kind:             input.Kind,
		AmountCents:      input.AmountCents,
		Status:           status,
		GatewayReference: input.GatewayReference,
		Metadata:         input.Metadata,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Balance(ctx context.Context, profileID uuid.UUID) (*Balance, error) {
	if profileID == uuid.Nil {
		return nil, fmt.Errorf("profile id is required")
	}
	pending, err := s.repo.SumPending(ctx, profileID)
	if err != nil {
		return nil, err
	}
	available, err := s.repo.SumAvailable(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return &Balance{
		ProfileID:      profileID,
		AvailableCents: available,
		PendingCents:   pending,
	}, nil
}

func (s *service) Statement(ctx context.Context, profileID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	if profileID == uuid.Nil {
		return nil, fmt.Errorf("profile id is required")
	}
	return s.repo.ListByProfileID(ctx, profileID, limit)
}

func (s *service) EntriesForSource(ctx context.Context, sourceID uuid.UUID) ([]models.LedgerEntry, error) {
	if sourceID == uuid.Nil {
		return nil, fmt.Errorf("source id is required")
	}
	return s.repo.ListBySourceID(ctx, sourceID)
}

func (s *service) HasEntry(ctx context.Context, sourceID uuid.UUID, kind enums.LedgerEntryKind) (bool, error) {
	if sourceID == uuid.Nil {
		return false, fmt.Errorf("source id is required")
	}
	if !kind.IsValid() {
		return false, fmt.Errorf("invalid ledger entry kind %q", kind)
	}
	entries, err := s.repo.ListBySourceID(ctx, sourceID)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}
