package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
)

type stubOrders struct {
	bySupplier map[uuid.UUID][]models.Order
	byVendor   map[uuid.UUID][]models.Order
	calls      int
	err        error
}

func (s *stubOrders) AllBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Order, error) {
	s.calls++
	return s.bySupplier[supplierID], s.err
}

func (s *stubOrders) AllByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error) {
	s.calls++
	return s.byVendor[vendorID], s.err
}

type stubProfiles struct {
	profiles map[uuid.UUID]users.Profile
	err      error
}

func (s *stubProfiles) BatchLookup(ctx context.Context, ids []uuid.UUID) (users.ProfileLookupResult, error) {
	result := users.ProfileLookupResult{Found: map[uuid.UUID]users.Profile{}, Failed: map[uuid.UUID]error{}}
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			result.Found[id] = p
		} else {
			result.NotFound = append(result.NotFound, id)
		}
	}
	return result, s.err
}

func order(vendorID, supplierID uuid.UUID, amount string, status enums.OrderStatus, at time.Time) models.Order {
	return models.Order{
		ID:          uuid.New(),
		VendorID:    vendorID,
		SupplierID:  supplierID,
		TotalAmount: decimal.RequireFromString(amount),
		Status:      status,
		CreatedAt:   at,
	}
}

func TestSupplierSummaryCountsEveryOrder(t *testing.T) {
	supplier, v1, v2 := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()
	orders := &stubOrders{bySupplier: map[uuid.UUID][]models.Order{supplier: {
		order(v1, supplier, "200", enums.OrderStatusDelivered, now),
		order(v2, supplier, "500", enums.OrderStatusCancelled, now.Add(-time.Hour)),
		order(v2, supplier, "100", enums.OrderStatusPending, now.Add(-2*time.Hour)),
	}}}
	profiles := &stubProfiles{profiles: map[uuid.UUID]users.Profile{
		v1: {ID: v1, Name: "Chaat Corner", Role: enums.UserRoleVendor},
		v2: {ID: v2, Name: "Dosa Point", Role: enums.UserRoleVendor},
	}}
	svc, err := NewService(ServiceParams{Orders: orders, Profiles: profiles})
	require.NoError(t, err)

	summary, err := svc.SupplierSummary(context.Background(), supplier)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalOrders)
	assert.True(t, summary.TotalRevenue.Equal(decimal.NewFromInt(800)))
	assert.True(t, summary.NetRevenue.Equal(decimal.NewFromInt(300)))
	assert.True(t, summary.AverageOrderValue.Equal(decimal.RequireFromString("266.67")))
	require.Len(t, summary.TopCounterparties, 2)
	assert.Equal(t, "Dosa Point", summary.TopCounterparties[0].Name)
	assert.True(t, summary.TopCounterparties[0].TotalSpent.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, 1, summary.StatusBreakdown[enums.OrderStatusCancelled])
}

func TestVendorSummaryRanksSuppliers(t *testing.T) {
	vendor, s1, s2 := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()
	orders := &stubOrders{byVendor: map[uuid.UUID][]models.Order{vendor: {
		order(vendor, s1, "50", enums.OrderStatusPending, now),
		order(vendor, s2, "80", enums.OrderStatusPending, now),
	}}}
	profiles := &stubProfiles{profiles: map[uuid.UUID]users.Profile{
		s1: {ID: s1, Name: "Fresh Farms", Role: enums.UserRoleSupplier, Rating: 4.2},
		s2: {ID: s2, Name: "Spice Route", Role: enums.UserRoleSupplier, Rating: 3.9},
	}}
	svc, err := NewService(ServiceParams{Orders: orders, Profiles: profiles})
	require.NoError(t, err)

	summary, err := svc.VendorSummary(context.Background(), vendor)
	require.NoError(t, err)
	require.Len(t, summary.TopCounterparties, 2)
	assert.Equal(t, "Spice Route", summary.TopCounterparties[0].Name)
	assert.Equal(t, 3.9, summary.TopCounterparties[0].Rating)
}

func TestSupplierCustomersGroupsVendors(t *testing.T) {
	supplier, v1, v2, stranger := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	rows := []models.Order{
		order(v1, supplier, "10", enums.OrderStatusPending, base.Add(5*time.Hour)),
		order(v2, supplier, "400", enums.OrderStatusDelivered, base.Add(4*time.Hour)),
		order(v1, supplier, "20", enums.OrderStatusDelivered, base.Add(3*time.Hour)),
		order(v1, supplier, "30", enums.OrderStatusCancelled, base.Add(2*time.Hour)),
		order(v1, supplier, "40", enums.OrderStatusDelivered, base.Add(time.Hour)),
		order(stranger, supplier, "999", enums.OrderStatusDelivered, base),
	}
	orders := &stubOrders{bySupplier: map[uuid.UUID][]models.Order{supplier: rows}}
	profiles := &stubProfiles{profiles: map[uuid.UUID]users.Profile{
		v1:       {ID: v1, Name: "Chaat Corner", Role: enums.UserRoleVendor},
		v2:       {ID: v2, Name: "Dosa Point", Role: enums.UserRoleVendor},
		stranger: {ID: stranger, Name: "Other Supplier", Role: enums.UserRoleSupplier},
	}}
	svc, err := NewService(ServiceParams{Orders: orders, Profiles: profiles})
	require.NoError(t, err)

	customers, err := svc.SupplierCustomers(context.Background(), supplier)
	require.NoError(t, err)
	require.Len(t, customers, 2)

	assert.Equal(t, "Dosa Point", customers[0].Name)
	first := customers[1]
	assert.Equal(t, "Chaat Corner", first.Name)
	assert.Equal(t, 4, first.TotalOrders)
	assert.True(t, first.TotalSpent.Equal(decimal.NewFromInt(100)))
	assert.True(t, first.LastOrderAt.Equal(base.Add(5*time.Hour)))
	require.Len(t, first.RecentOrders, 3)
	assert.Equal(t, rows[0].ID, first.RecentOrders[0].ID)
	assert.Equal(t, rows[3].ID, first.RecentOrders[2].ID)
}

func TestSummaryRecomputesOnEveryLoad(t *testing.T) {
	supplier, v1 := uuid.New(), uuid.New()
	orders := &stubOrders{bySupplier: map[uuid.UUID][]models.Order{supplier: {
		order(v1, supplier, "25", enums.OrderStatusPending, time.Now().UTC()),
	}}}
	profiles := &stubProfiles{profiles: map[uuid.UUID]users.Profile{v1: {ID: v1, Name: "A", Role: enums.UserRoleVendor}}}
	svc, err := NewService(ServiceParams{Orders: orders, Profiles: profiles})
	require.NoError(t, err)

	_, err = svc.SupplierSummary(context.Background(), supplier)
	require.NoError(t, err)
	profiles.profiles[v1] = users.Profile{ID: v1, Name: "Renamed", Role: enums.UserRoleVendor}
	second, err := svc.SupplierSummary(context.Background(), supplier)
	require.NoError(t, err)

	assert.Equal(t, 2, orders.calls)
	require.Len(t, second.TopCounterparties, 1)
	assert.Equal(t, "Renamed", second.TopCounterparties[0].Name)
}

type failingUserStore struct{}

var errUsersDown = errors.New("db down")

func (failingUserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, errUsersDown
}

func (failingUserStore) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	return nil, errUsersDown
}

func (failingUserStore) SearchSuppliers(ctx context.Context, q users.SupplierQuery) ([]models.User, error) {
	return nil, errUsersDown
}

func (failingUserStore) UpdateProfile(ctx context.Context, id uuid.UUID, patch users.ProfilePatch) (*models.User, error) {
	return nil, errUsersDown
}

func TestSummarySurvivesProfileLookupFailure(t *testing.T) {
	supplier, v1, v2 := uuid.New(), uuid.New(), uuid.New()
	orders := &stubOrders{bySupplier: map[uuid.UUID][]models.Order{supplier: {
		order(v1, supplier, "100", enums.OrderStatusPending, time.Now().UTC()),
		order(v2, supplier, "50", enums.OrderStatusPending, time.Now().UTC()),
	}}}
	directory, err := users.NewService(users.ServiceParams{Repository: failingUserStore{}})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Orders: orders, Profiles: directory})
	require.NoError(t, err)

	summary, err := svc.SupplierSummary(context.Background(), supplier)
	require.NoError(t, err)
	assert.True(t, summary.TotalRevenue.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, 2, summary.TotalOrders)
	assert.True(t, summary.AverageOrderValue.Equal(decimal.NewFromInt(75)))
	assert.Empty(t, summary.TopCounterparties)
	assert.ElementsMatch(t, []SkippedCounterparty{
		{ID: v1, Reason: SkipLookupFailed},
		{ID: v2, Reason: SkipLookupFailed},
	}, summary.Skipped)

	customers, err := svc.SupplierCustomers(context.Background(), supplier)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, v1, customers[0].ID)
	assert.Empty(t, customers[0].Name)
	assert.True(t, customers[0].TotalSpent.Equal(decimal.NewFromInt(100)))
}

func TestSummaryErrors(t *testing.T) {
	orders := &stubOrders{err: errors.New("db down")}
	svc, err := NewService(ServiceParams{Orders: orders, Profiles: &stubProfiles{}})
	require.NoError(t, err)

	_, err = svc.SupplierSummary(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = NewService(ServiceParams{Profiles: &stubProfiles{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Orders: orders})
	assert.Error(t, err)
}
