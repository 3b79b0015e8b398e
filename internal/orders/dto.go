package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	"github.com/streetfoodconnect/marketplace-backend/pkg/pagination"
)

// LineItemInput is one material line submitted by the vendor.
type LineItemInput struct {
	Name      string           `json:"name" validate:"required"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Unit      string           `json:"unit" validate:"required"`
	UnitPrice decimal.Decimal  `json:"price"`
	Total     *decimal.Decimal `json:"total,omitempty"`
}

// CreateOrderInput is the vendor's order request. Totals supplied by the
// client are checked against the server computation, never trusted.
type CreateOrderInput struct {
	SupplierID      uuid.UUID        `json:"supplier_id" validate:"required"`
	Items           []LineItemInput  `json:"items" validate:"required,min=1,dive"`
	TotalAmount     *decimal.Decimal `json:"total_amount,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
	DeliveryAddress *string          `json:"delivery_address,omitempty"`
}

// UpdateStatusInput carries the requested next status.
type UpdateStatusInput struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}

// ListParams are the cursor and filter inputs for order listings.
type ListParams struct {
	pagination.Params
	Status string
}

// ListQuery is the parsed form of ListParams handed to the repository.
type ListQuery struct {
	Limit  int
	Cursor *pagination.Cursor
	Status *enums.OrderStatus
}

// LineItem is the API view of an order line.
type LineItem struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

// Order is the API view of an order with its lines.
type Order struct {
	ID              uuid.UUID           `json:"id"`
	VendorID        uuid.UUID           `json:"vendor_id"`
	SupplierID      uuid.UUID           `json:"supplier_id"`
	Items           []LineItem          `json:"items"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	NextStatuses    []enums.OrderStatus `json:"next_statuses"`
	Notes           *string             `json:"notes,omitempty"`
	DeliveryAddress *string             `json:"delivery_address,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []Order `json:"orders"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// FromModel maps a persisted order into its API view.
func FromModel(m *models.Order) *Order {
	if m == nil {
		return nil
	}
	items := make([]LineItem, 0, len(m.Items))
	for _, item := range m.Items {
		items = append(items, LineItem{
			ID:        item.ID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Unit:      item.Unit,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
		})
	}
	return &Order{
		ID:              m.ID,
		VendorID:        m.VendorID,
		SupplierID:      m.SupplierID,
		Items:           items,
		TotalAmount:     m.TotalAmount,
		Status:          m.Status,
		PaymentStatus:   m.PaymentStatus,
		NextStatuses:    NextStatuses(m.Status),
		Notes:           m.Notes,
		DeliveryAddress: m.DeliveryAddress,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
