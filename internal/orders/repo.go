package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/internal/repo"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	"github.com/streetfoodconnect/marketplace-backend/pkg/pagination"
)

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.Tx(tx)}
}

// Create inserts the order and its line items. Line items keep submission
// order through strictly increasing created_at values.
func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt = order.CreatedAt.Add(time.Duration(i) * time.Microsecond)
	}
	if err := r.DB(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.withItems(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByVendor(ctx context.Context, vendorID uuid.UUID, q ListQuery) ([]models.Order, *pagination.Cursor, error) {
	return r.list(ctx, "vendor_id", vendorID, q)
}

func (r *repository) ListBySupplier(ctx context.Context, supplierID uuid.UUID, q ListQuery) ([]models.Order, *pagination.Cursor, error) {
	return r.list(ctx, "supplier_id", supplierID, q)
}

// AllByVendor returns every order the vendor placed, newest first.
func (r *repository) AllByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error) {
	return r.all(ctx, "vendor_id", vendorID)
}

// AllBySupplier returns every order addressed to the supplier, newest first.
func (r *repository) AllBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Order, error) {
	return r.all(ctx, "supplier_id", supplierID)
}

// UpdateStatus moves the order from -> to. It affects no rows, and returns
// errStaleStatus, when the stored status is no longer from.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time) error {
	res := r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStaleStatus
	}
	return nil
}

func (r *repository) withItems(ctx context.Context) *gorm.DB {
	return r.DB(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC").Order("id ASC")
	})
}

func (r *repository) all(ctx context.Context, column string, ownerID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.withItems(ctx).
		Where(column+" = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) list(ctx context.Context, column string, ownerID uuid.UUID, q ListQuery) ([]models.Order, *pagination.Cursor, error) {
	query := r.withItems(ctx).Where(column+" = ?", ownerID)
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.Cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", q.Cursor.CreatedAt, q.Cursor.CreatedAt, q.Cursor.ID)
	}

	var rows []models.Order
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(q.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	page, next := pagination.Trim(rows, q.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}
