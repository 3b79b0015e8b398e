package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/internal/repo"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
)

// Repository persists supplier inventory rows. Every lookup is scoped to the
// owning supplier, so foreign rows read as missing.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, item *models.InventoryItem) (*models.InventoryItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if err := r.DB(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// FindForSupplier loads one item owned by supplierID.
func (r *Repository) FindForSupplier(ctx context.Context, supplierID, itemID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.DB(ctx).
		Where("id = ? AND supplier_id = ?", itemID, supplierID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListBySupplier returns the supplier's items ordered by name.
func (r *Repository) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.InventoryItem, error) {
	var rows []models.InventoryItem
	err := r.DB(ctx).
		Where("supplier_id = ?", supplierID).
		Order("name ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) Save(ctx context.Context, item *models.InventoryItem) error {
	return r.DB(ctx).Save(item).Error
}

// DeleteForSupplier removes the item and reports gorm.ErrRecordNotFound when
// the supplier does not own it.
func (r *Repository) DeleteForSupplier(ctx context.Context, supplierID, itemID uuid.UUID) error {
	res := r.DB(ctx).
		Where("id = ? AND supplier_id = ?", itemID, supplierID).
		Delete(&models.InventoryItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
