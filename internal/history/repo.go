package history

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
)

// Repository manages the append-only contract history. There is deliberately
// no update or delete surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.ContractHistoryEntry) error
	ListByContractID(ctx context.Context, contractID uuid.UUID) ([]models.ContractHistoryEntry, error)
	CountByContractID(ctx context.Context, contractID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a history repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry *models.ContractHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByContractID(ctx context.Context, contractID uuid.UUID) ([]models.ContractHistoryEntry, error) {
	var entries []models.ContractHistoryEntry
	if err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CountByContractID(ctx context.Context, contractID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ContractHistoryEntry{}).
		Where("contract_id = ?", contractID).
		Count(&count).Error
	return count, err
}
