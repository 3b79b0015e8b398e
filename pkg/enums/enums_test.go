package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole(" Supplier ")
	require.NoError(t, err)
	assert.Equal(t, UserRoleSupplier, role)

	_, err = ParseUserRole("admin")
	assert.EqualError(t, err, `invalid user role "admin"`)
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, status := range OrderStatuses() {
		want := status == OrderStatusDelivered || status == OrderStatusCancelled
		assert.Equal(t, want, status.IsTerminal(), status)
	}
	_, err := ParseOrderStatus("shipped")
	assert.Error(t, err)

	got, err := ParseOrderStatus("IN_TRANSIT")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusInTransit, got)
}

func TestOrderStatusesIsACopy(t *testing.T) {
	list := OrderStatuses()
	list[0] = "mutated"
	assert.Equal(t, OrderStatusPending, OrderStatuses()[0])
}

func TestOutboxEnums(t *testing.T) {
	assert.True(t, EventReviewAdded.IsValid())
	assert.True(t, AggregateOrder.IsValid())
	assert.True(t, OutboxDLQReasonNonRetryable.IsValid())
	assert.False(t, OutboxEventType("order_paid").IsValid())
	assert.False(t, PaymentStatus("void").IsValid())
}
