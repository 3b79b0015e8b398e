package orders

import (
	"fmt"

	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed: {enums.OrderStatusInTransit, enums.OrderStatusCancelled},
	enums.OrderStatusInTransit: {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	enums.OrderStatusDelivered: nil,
	enums.OrderStatusCancelled: nil,
}

// TransitionError reports a status change outside the lifecycle table.
type TransitionError struct {
	From    enums.OrderStatus
	To      enums.OrderStatus
	Allowed []enums.OrderStatus
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("order status %s is terminal", e.From)
	}
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// NextStatuses lists the statuses reachable from from in one step.
func NextStatuses(from enums.OrderStatus) []enums.OrderStatus {
	next := transitions[from]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a *TransitionError unless from -> to is a table edge.
func ValidateTransition(from, to enums.OrderStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return &TransitionError{From: from, To: to, Allowed: NextStatuses(from)}
}
