package enums

import "slices"

// OrderStatus tracks a raw-material order from placement to hand-off.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = newValueSet("order status",
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusCancelled,
)

// OrderStatuses lists every status in lifecycle order.
func OrderStatuses() []OrderStatus { return slices.Clone(orderStatuses.values) }

func (s OrderStatus) String() string { return string(s) }
func (s OrderStatus) IsValid() bool  { return orderStatuses.contains(s) }

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func ParseOrderStatus(value string) (OrderStatus, error) { return orderStatuses.parse(value) }
