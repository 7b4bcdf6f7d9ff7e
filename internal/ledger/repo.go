package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

// Repository manages persistence for ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	ListBySourceID(ctx context.Context, sourceID uuid.UUID) ([]models.LedgerEntry, error)
	ListByProfileID(ctx context.Context, profileID uuid.UUID, limit int) ([]models.LedgerEntry, error)
	FindByGatewayReference(ctx context.Context, reference string) ([]models.LedgerEntry, error)
	UpdateStatusByGatewayReference(ctx context.Context, reference string, status enums.LedgerEntryStatus) (int64, error)
	SetGatewayReferenceBySourceID(ctx context.Context, sourceID uuid.UUID, reference string) (int64, error)
	UpdateStatusBySourceID(ctx context.Context, sourceID uuid.UUID, status enums.LedgerEntryStatus) (int64, error)
	SumPending(ctx context.Context, profileID uuid.UUID) (int64, error)
	SumAvailable(ctx context.Context, profileID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListBySourceID(ctx context.Context, sourceID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByProfileID(ctx context.Context, profileID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	q := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) FindByGatewayReference(ctx context.Context, reference string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("gateway_reference = ?", reference).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) UpdateStatusByGatewayReference(ctx context.Context, reference string, status enums.LedgerEntryStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("gateway_reference = ?", reference).
		Update("status", status)
	return result.RowsAffected, result.Error
}

// SetGatewayReferenceBySourceID tags the source's untagged entries with the
// gateway reference once the transfer exists.
func (r *repository) SetGatewayReferenceBySourceID(ctx context.Context, sourceID uuid.UUID, reference string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("source_id = ? AND gateway_reference IS NULL", sourceID).
		Update("gateway_reference", reference)
	return result.RowsAffected, result.Error
}

// UpdateStatusBySourceID moves the source's pending entries to a terminal
// status. Entries already settled are left alone.
func (r *repository) UpdateStatusBySourceID(ctx context.Context, sourceID uuid.UUID, status enums.LedgerEntryStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("source_id = ? AND status = ?", sourceID, enums.LedgerEntryStatusPending).
		Update("status", status)
	return result.RowsAffected, result.Error
}

// SumPending returns the net of HOLD entries for the profile: funds captured
// into escrow but not yet released or refunded.
func (r *repository) SumPending(ctx context.Context, profileID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("profile_id = ? AND kind = ?", profileID, enums.LedgerEntryKindHold).
		Scan(&total).Error
	return total, err
}

// SumAvailable returns released funds minus withdrawal movements. Failed
// withdrawals restore the balance through a compensating credit, so no status
// filter is needed.
func (r *repository) SumAvailable(ctx context.Context, profileID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("profile_id = ? AND (kind = ? OR source_type = ?)",
			profileID, enums.LedgerEntryKindRelease, models.LedgerSourceWithdrawal).
		Scan(&total).Error
	return total, err
}
