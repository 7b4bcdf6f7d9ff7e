package webhooks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
)

// ReviewRepository manages the queue of webhook events waiting for a human.
type ReviewRepository interface {
	WithTx(tx *gorm.DB) ReviewRepository
	Create(ctx context.Context, review *models.WebhookReview) error
	FindByEventID(ctx context.Context, eventID string) (*models.WebhookReview, error)
	ListOpen(ctx context.Context, limit int) ([]models.WebhookReview, error)
	MarkReviewed(ctx context.Context, id uuid.UUID) error
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository returns a review repository bound to the provided database.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) WithTx(tx *gorm.DB) ReviewRepository {
	if tx == nil {
		return r
	}
	return &reviewRepository{db: tx}
}

func (r *reviewRepository) Create(ctx context.Context, review *models.WebhookReview) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *reviewRepository) FindByEventID(ctx context.Context, eventID string) (*models.WebhookReview, error) {
	var review models.WebhookReview
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) ListOpen(ctx context.Context, limit int) ([]models.WebhookReview, error) {
	var reviews []models.WebhookReview
	q := r.db.WithContext(ctx).
		Where("reviewed_at IS NULL").
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepository) MarkReviewed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookReview{}).
		Where("id = ? AND reviewed_at IS NULL", id).
		Update("reviewed_at", time.Now()).Error
}
