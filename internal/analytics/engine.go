package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

const DefaultTopN = 3

// Reasons a counterparty is left out of the ranking.
const (
	SkipProfileMissing = "profile_missing"
	SkipLookupFailed   = "lookup_failed"
)

// OrderFact is the slice of an order the aggregation needs. CounterpartyID is
// the vendor for supplier views and the supplier for vendor views.
type OrderFact struct {
	ID             uuid.UUID
	CounterpartyID uuid.UUID
	TotalAmount    decimal.Decimal
	Status         enums.OrderStatus
	CreatedAt      time.Time
}

// RankedCounterparty is one entry of the top-N list.
type RankedCounterparty struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	OrderCount int             `json:"order_count"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	Rating     float64         `json:"rating"`
}

// SkippedCounterparty records a counterparty that could not be ranked.
type SkippedCounterparty struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

// Summary is the dashboard aggregate for one user. TotalRevenue sums every
// order; NetRevenue leaves cancelled orders out.
type Summary struct {
	TotalRevenue           decimal.Decimal           `json:"total_revenue"`
	NetRevenue             decimal.Decimal           `json:"net_revenue"`
	TotalOrders            int                       `json:"total_orders"`
	AverageOrderValue      decimal.Decimal           `json:"average_order_value"`
	DistinctCounterparties int                       `json:"distinct_counterparties"`
	CounterpartyIDs        []uuid.UUID               `json:"counterparty_ids"`
	TopCounterparties      []RankedCounterparty      `json:"top_counterparties"`
	StatusBreakdown        map[enums.OrderStatus]int `json:"status_breakdown"`
	Skipped                []SkippedCounterparty     `json:"skipped,omitempty"`
}

// Aggregate folds orders into a Summary. The ranking is stable: counterparties
// with equal spend keep the order in which they were first seen.
func Aggregate(orders []OrderFact, profiles users.ProfileLookupResult, topN int) Summary {
	if topN <= 0 {
		topN = DefaultTopN
	}
	summary := Summary{
		TotalRevenue:      decimal.Zero,
		NetRevenue:        decimal.Zero,
		AverageOrderValue: decimal.Zero,
		CounterpartyIDs:   []uuid.UUID{},
		TopCounterparties: []RankedCounterparty{},
		StatusBreakdown:   map[enums.OrderStatus]int{},
	}

	byID := map[uuid.UUID]*RankedCounterparty{}
	for _, order := range orders {
		summary.TotalOrders++
		summary.TotalRevenue = summary.TotalRevenue.Add(order.TotalAmount)
		if order.Status != enums.OrderStatusCancelled {
			summary.NetRevenue = summary.NetRevenue.Add(order.TotalAmount)
		}
		summary.StatusBreakdown[order.Status]++

		entry, ok := byID[order.CounterpartyID]
		if !ok {
			entry = &RankedCounterparty{ID: order.CounterpartyID, TotalSpent: decimal.Zero}
			byID[order.CounterpartyID] = entry
			summary.CounterpartyIDs = append(summary.CounterpartyIDs, order.CounterpartyID)
		}
		entry.OrderCount++
		entry.TotalSpent = entry.TotalSpent.Add(order.TotalAmount)
	}
	summary.DistinctCounterparties = len(summary.CounterpartyIDs)
	if summary.TotalOrders > 0 {
		summary.AverageOrderValue = summary.TotalRevenue.
			Div(decimal.NewFromInt(int64(summary.TotalOrders))).
			Round(2)
	}

	ranked := make([]RankedCounterparty, 0, len(summary.CounterpartyIDs))
	for _, id := range summary.CounterpartyIDs {
		profile, found := profiles.Found[id]
		if !found {
			reason := SkipProfileMissing
			if _, failed := profiles.Failed[id]; failed {
				reason = SkipLookupFailed
			}
			summary.Skipped = append(summary.Skipped, SkippedCounterparty{ID: id, Reason: reason})
			continue
		}
		entry := *byID[id]
		entry.Name = profile.Name
		entry.Rating = profile.Rating
		ranked = append(ranked, entry)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalSpent.GreaterThan(ranked[j].TotalSpent)
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	summary.TopCounterparties = ranked
	return summary
}
