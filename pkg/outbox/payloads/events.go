package payloads

import (
	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when a vendor places an order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
	SupplierID  uuid.UUID `json:"supplier_id"`
	TotalAmount string    `json:"total_amount"`
	ItemCount   int       `json:"item_count"`
}

// OrderStatusChangedEvent is emitted for every accepted status transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	VendorID   uuid.UUID         `json:"vendor_id"`
	SupplierID uuid.UUID         `json:"supplier_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
}

// ReviewAddedEvent is emitted when a vendor reviews a supplier.
type ReviewAddedEvent struct {
	ReviewID   uuid.UUID `json:"review_id"`
	SupplierID uuid.UUID `json:"supplier_id"`
	VendorID   uuid.UUID `json:"vendor_id"`
	Rating     int       `json:"rating"`
}
