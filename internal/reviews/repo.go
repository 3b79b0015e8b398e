package reviews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/internal/repo"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
)

// Repository stores append-only supplier reviews.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.Tx(tx)}
}

func (r *Repository) Create(ctx context.Context, review *models.Review) (*models.Review, error) {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	if err := r.DB(ctx).Create(review).Error; err != nil {
		return nil, err
	}
	return review, nil
}

// ListBySupplier returns the supplier's reviews, newest first.
func (r *Repository) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Review, error) {
	var rows []models.Review
	err := r.DB(ctx).
		Where("supplier_id = ?", supplierID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
