package controllers

import (
	"net/http"

	"github.com/streetfoodconnect/marketplace-backend/api/validators"
	"github.com/streetfoodconnect/marketplace-backend/internal/search"
	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

const maxSearchTextLength = 100

// SupplierSearch lists suppliers matching every supplied criterion.
func SupplierSearch(svc search.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "search service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		filter, err := parseSupplierFilter(r)
		if err != nil {
			return fail(err)
		}
		suppliers, err := svc.Search(r.Context(), filter)
		return ok(map[string]any{
			"suppliers": suppliers,
			"filter":    filter,
			"filtered":  !filter.IsDefault(),
		}, err)
	})
}

func parseSupplierFilter(r *http.Request) (search.Filter, error) {
	minRating, err := validators.ParseQueryFloat(r, "minRating", 0, 0, 5)
	if err != nil {
		return search.Filter{}, err
	}
	verified, err := validators.ParseQueryBool(r, "verified")
	if err != nil {
		return search.Filter{}, err
	}
	text := func(key string) string {
		return validators.SanitizeString(r.URL.Query().Get(key), maxSearchTextLength)
	}
	return search.Filter{
		FreeText:     text("q"),
		Category:     text("category"),
		Location:     text("location"),
		MinRating:    minRating,
		VerifiedOnly: verified,
	}, nil
}

func SupplierProfile(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return profileByParam(svc, logg, "supplierId")
}
