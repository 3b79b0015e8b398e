package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

const recentOrdersPerCustomer = 3

const (
	viewSupplierSummary   = "supplier_summary"
	viewVendorSummary     = "vendor_summary"
	viewSupplierCustomers = "supplier_customers"
)

// Service builds dashboard analytics from persisted orders.
type Service interface {
	SupplierSummary(ctx context.Context, supplierID uuid.UUID) (*Summary, error)
	VendorSummary(ctx context.Context, vendorID uuid.UUID) (*Summary, error)
	SupplierCustomers(ctx context.Context, supplierID uuid.UUID) ([]Customer, error)
}

type orderLister interface {
	AllBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Order, error)
	AllByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error)
}

type profileLookup interface {
	BatchLookup(ctx context.Context, ids []uuid.UUID) (users.ProfileLookupResult, error)
}

// RecentOrder is a compact order row shown under a customer.
type RecentOrder struct {
	ID          uuid.UUID         `json:"id"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Status      enums.OrderStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Customer is a vendor who has ordered from the supplier.
type Customer struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Phone        *string         `json:"phone,omitempty"`
	Location     *string         `json:"location,omitempty"`
	BusinessType *string         `json:"business_type,omitempty"`
	TotalOrders  int             `json:"total_orders"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
	LastOrderAt  time.Time       `json:"last_order_at"`
	RecentOrders []RecentOrder   `json:"recent_orders"`
}

type ServiceParams struct {
	Orders   orderLister
	Profiles profileLookup
	TopN     int
	Logger   *logger.Logger
}

type service struct {
	orders   orderLister
	profiles profileLookup
	topN     int
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders lister required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile lookup required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	topN := params.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &service{
		orders:   params.Orders,
		profiles: params.Profiles,
		topN:     topN,
		logg:     logg,
	}, nil
}

func (s *service) SupplierSummary(ctx context.Context, supplierID uuid.UUID) (*Summary, error) {
	return s.summary(ctx, viewSupplierSummary, supplierID, func(ctx context.Context) ([]models.Order, error) {
		return s.orders.AllBySupplier(ctx, supplierID)
	}, func(o models.Order) uuid.UUID { return o.VendorID })
}

func (s *service) VendorSummary(ctx context.Context, vendorID uuid.UUID) (*Summary, error) {
	return s.summary(ctx, viewVendorSummary, vendorID, func(ctx context.Context) ([]models.Order, error) {
		return s.orders.AllByVendor(ctx, vendorID)
	}, func(o models.Order) uuid.UUID { return o.SupplierID })
}

func (s *service) summary(
	ctx context.Context,
	view string,
	userID uuid.UUID,
	load func(context.Context) ([]models.Order, error),
	counterparty func(models.Order) uuid.UUID,
) (*Summary, error) {
	rows, err := load(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}
	facts := make([]OrderFact, 0, len(rows))
	for _, row := range rows {
		facts = append(facts, OrderFact{
			ID:             row.ID,
			CounterpartyID: counterparty(row),
			TotalAmount:    row.TotalAmount,
			Status:         row.Status,
			CreatedAt:      row.CreatedAt,
		})
	}

	profiles := s.lookup(ctx, view, userID, counterpartyIDs(facts))
	summary := Aggregate(facts, profiles, s.topN)
	return &summary, nil
}

// SupplierCustomers lists the vendors who ordered from the supplier, biggest
// spenders first. Counterparties that are not vendors are left out. A vendor
// whose profile lookup failed is still listed, without contact details.
func (s *service) SupplierCustomers(ctx context.Context, supplierID uuid.UUID) ([]Customer, error) {
	rows, err := s.orders.AllBySupplier(ctx, supplierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}

	var (
		order   []uuid.UUID
		grouped = map[uuid.UUID]*Customer{}
	)
	for _, row := range rows {
		entry, ok := grouped[row.VendorID]
		if !ok {
			entry = &Customer{ID: row.VendorID, TotalSpent: decimal.Zero, LastOrderAt: row.CreatedAt, RecentOrders: []RecentOrder{}}
			grouped[row.VendorID] = entry
			order = append(order, row.VendorID)
		}
		entry.TotalOrders++
		entry.TotalSpent = entry.TotalSpent.Add(row.TotalAmount)
		if row.CreatedAt.After(entry.LastOrderAt) {
			entry.LastOrderAt = row.CreatedAt
		}
		if len(entry.RecentOrders) < recentOrdersPerCustomer {
			entry.RecentOrders = append(entry.RecentOrders, RecentOrder{
				ID:          row.ID,
				TotalAmount: row.TotalAmount,
				Status:      row.Status,
				CreatedAt:   row.CreatedAt,
			})
		}
	}

	profiles := s.lookup(ctx, viewSupplierCustomers, supplierID, order)
	customers := make([]Customer, 0, len(order))
	for _, id := range order {
		if _, failed := profiles.Failed[id]; failed {
			customers = append(customers, *grouped[id])
			continue
		}
		profile, ok := profiles.Found[id]
		if !ok || profile.Role != enums.UserRoleVendor {
			continue
		}
		entry := *grouped[id]
		entry.Name = profile.Name
		entry.Email = profile.Email
		entry.Phone = profile.Phone
		entry.Location = profile.Location
		entry.BusinessType = profile.BusinessType
		customers = append(customers, entry)
	}
	sortCustomers(customers)
	return customers, nil
}

// lookup resolves counterparty profiles. A failed lookup leaves the affected
// ids in Failed and the view renders without their names.
func (s *service) lookup(ctx context.Context, view string, userID uuid.UUID, ids []uuid.UUID) users.ProfileLookupResult {
	profiles, err := s.profiles.BatchLookup(ctx, ids)
	if err != nil {
		s.warn(ctx, view, userID, "analytics profile lookup failed", err)
	}
	return profiles
}

func (s *service) warn(ctx context.Context, view string, userID uuid.UUID, msg string, err error) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"view":    view,
		"user_id": userID,
		"error":   err.Error(),
	})
	s.logg.Warn(logCtx, msg)
}

func counterpartyIDs(facts []OrderFact) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(facts))
	ids := make([]uuid.UUID, 0, len(facts))
	for _, fact := range facts {
		if _, ok := seen[fact.CounterpartyID]; ok {
			continue
		}
		seen[fact.CounterpartyID] = struct{}{}
		ids = append(ids, fact.CounterpartyID)
	}
	return ids
}

func sortCustomers(customers []Customer) {
	sort.SliceStable(customers, func(i, j int) bool {
		return customers[i].TotalSpent.GreaterThan(customers[j].TotalSpent)
	})
}
