package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem is a material a supplier offers, with current stock and price.
type InventoryItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SupplierID uuid.UUID       `gorm:"column:supplier_id;type:uuid;not null"`
	Name       string          `gorm:"column:name;not null"`
	Quantity   decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null;default:0"`
	Unit       string          `gorm:"column:unit;not null"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	Category   *string         `gorm:"column:category"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
