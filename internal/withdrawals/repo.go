package withdrawals

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/pagination"
)

// Repository manages persistence for withdrawals.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	FindByGatewayReference(ctx context.Context, reference string) (*models.Withdrawal, error)
	Save(ctx context.Context, withdrawal *models.Withdrawal) error
	ListByUserID(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Withdrawal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a withdrawal repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&withdrawal).Error; err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func (r *repository) FindByGatewayReference(ctx context.Context, reference string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := r.db.WithContext(ctx).
		Where("gateway_reference = ?", reference).
		First(&withdrawal).Error; err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func (r *repository) Save(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Save(withdrawal).Error
}

func (r *repository) ListByUserID(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Withdrawal, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var withdrawals []models.Withdrawal
	if err := q.Find(&withdrawals).Error; err != nil {
		return nil, err
	}
	return withdrawals, nil
}
