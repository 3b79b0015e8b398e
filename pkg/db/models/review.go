package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is an append-only rating a vendor leaves for a supplier.
type Review struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SupplierID uuid.UUID `gorm:"column:supplier_id;type:uuid;not null"`
	VendorID   uuid.UUID `gorm:"column:vendor_id;type:uuid;not null"`
	Rating     int       `gorm:"column:rating;not null"`
	Comment    *string   `gorm:"column:comment"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
