package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
)

// CreateItemInput holds the payload to add a material to a supplier's stock.
type CreateItemInput struct {
	Name     string          `json:"name" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Category *string         `json:"category,omitempty"`
}

// UpdateItemInput is a partial patch; nil fields are left untouched.
type UpdateItemInput struct {
	Name     *string          `json:"name,omitempty"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Unit     *string          `json:"unit,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Category *string          `json:"category,omitempty"`
}

// Item is the API view of an inventory row.
type Item struct {
	ID         uuid.UUID       `json:"id"`
	SupplierID uuid.UUID       `json:"supplier_id"`
	Name       string          `json:"name"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
	Price      decimal.Decimal `json:"price"`
	Category   *string         `json:"category,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ChangeKind names the mutation carried by an inventory_changed event.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// ChangedEvent is the realtime payload for inventory mutations.
type ChangedEvent struct {
	Change ChangeKind `json:"change"`
	ItemID uuid.UUID  `json:"item_id"`
	Item   *Item      `json:"item,omitempty"`
}

// FromModel maps a persisted inventory row into its API view.
func FromModel(m *models.InventoryItem) *Item {
	if m == nil {
		return nil
	}
	return &Item{
		ID:         m.ID,
		SupplierID: m.SupplierID,
		Name:       m.Name,
		Quantity:   m.Quantity,
		Unit:       m.Unit,
		Price:      m.Price,
		Category:   m.Category,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func (in CreateItemInput) toModel(supplierID uuid.UUID) (*models.InventoryItem, error) {
	name := strings.TrimSpace(in.Name)
	unit := strings.TrimSpace(in.Unit)
	if err := validateFields(name, unit, in.Quantity, in.Price); err != nil {
		return nil, err
	}
	return &models.InventoryItem{
		ID:         uuid.New(),
		SupplierID: supplierID,
		Name:       name,
		Quantity:   in.Quantity,
		Unit:       unit,
		Price:      in.Price,
		Category:   trimmedOrNil(in.Category),
	}, nil
}

func (in UpdateItemInput) isEmpty() bool {
	return in.Name == nil && in.Quantity == nil && in.Unit == nil && in.Price == nil && in.Category == nil
}

// apply merges the patch into item and revalidates the result.
func (in UpdateItemInput) apply(item *models.InventoryItem) error {
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.Unit != nil {
		item.Unit = strings.TrimSpace(*in.Unit)
	}
	if in.Quantity != nil {
		item.Quantity = *in.Quantity
	}
	if in.Price != nil {
		item.Price = *in.Price
	}
	if in.Category != nil {
		item.Category = trimmedOrNil(in.Category)
	}
	return validateFields(item.Name, item.Unit, item.Quantity, item.Price)
}

func validateFields(name, unit string, quantity, price decimal.Decimal) error {
	switch {
	case name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case unit == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "unit is required")
	case quantity.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	case price.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
