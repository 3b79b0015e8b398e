package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	"github.com/streetfoodconnect/marketplace-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, q ListQuery) ([]models.Order, *pagination.Cursor, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID, q ListQuery) ([]models.Order, *pagination.Cursor, error)
	AllByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error)
	AllBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time) error
}
