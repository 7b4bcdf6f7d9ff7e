package contracts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/pagination"
)

// Repository manages persistence for contracts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, contract *models.Contract) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	// FindByIDForUpdate locks the row for the duration of the surrounding
	// transaction so concurrent transitions serialize on the database.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	Save(ctx context.Context, contract *models.Contract) error
	ListByParticipant(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Contract, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a contract repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *repository) Save(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Save(contract).Error
}

func (r *repository) ListByParticipant(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Contract, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).
		Where("client_id = ? OR provider_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var contracts []models.Contract
	if err := q.Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}
