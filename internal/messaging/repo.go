package messaging

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/pagination"
)

// Repository manages persistence for messages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, message *models.Message) error
	ListByContractID(ctx context.Context, contractID uuid.UUID, params pagination.Params) ([]models.Message, error)
}

// StandingRepository manages sender standing rows.
type StandingRepository interface {
	WithTx(tx *gorm.DB) StandingRepository
	Find(ctx context.Context, senderID uuid.UUID) (*models.SenderStanding, error)
	Upsert(ctx context.Context, standing *models.SenderStanding) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a message repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repository) ListByContractID(ctx context.Context, contractID uuid.UUID, params pagination.Params) ([]models.Message, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var messages []models.Message
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

type standingRepository struct {
	db *gorm.DB
}

// NewStandingRepository returns a standing repository bound to the provided database.
func NewStandingRepository(db *gorm.DB) StandingRepository {
	return &standingRepository{db: db}
}

func (r *standingRepository) WithTx(tx *gorm.DB) StandingRepository {
	if tx == nil {
		return r
	}
	return &standingRepository{db: tx}
}

// Find returns the sender's standing, or a zeroed row for first-time senders.
func (r *standingRepository) Find(ctx context.Context, senderID uuid.UUID) (*models.SenderStanding, error) {
	var standing models.SenderStanding
	err := r.db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		First(&standing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.SenderStanding{SenderID: senderID}, nil
		}
		return nil, err
	}
	return &standing, nil
}

func (r *standingRepository) Upsert(ctx context.Context, standing *models.SenderStanding) error {
	return r.db.WithContext(ctx).Save(standing).Error
}
