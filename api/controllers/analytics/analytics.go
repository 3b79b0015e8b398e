package analytics

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/api/middleware"
	"github.com/streetfoodconnect/marketplace-backend/api/responses"
	internalanalytics "github.com/streetfoodconnect/marketplace-backend/internal/analytics"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

// SupplierSummary serves the supplier dashboard aggregate.
func SupplierSummary(svc internalanalytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireService(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.SupplierSummary(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// SupplierCustomers lists every vendor that has ordered from the supplier.
func SupplierCustomers(svc internalanalytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireService(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customers, err := svc.SupplierCustomers(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"customers": customers})
	}
}

// VendorSummary serves the vendor dashboard aggregate.
func VendorSummary(svc internalanalytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireService(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.VendorSummary(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func requireService(r *http.Request, svc internalanalytics.Service) (uuid.UUID, error) {
	if svc == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeInternal, "analytics service unavailable")
	}
	sess := middleware.SessionFromContext(r.Context())
	if !sess.IsAuthenticated() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return sess.UserID(), nil
}
