package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/internal/search"
	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

type compareAddRequest struct {
	SupplierID uuid.UUID `json:"supplier_id" validate:"required"`
}

// compareHandler resolves the calling vendor before running op.
func compareHandler(svc search.Service, logg *logger.Logger, op func(ctx context.Context, r *http.Request, vendorID uuid.UUID) (int, any, error)) http.HandlerFunc {
	return handle(logg, "search service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		vendorID, err := callerID(r)
		if err != nil {
			return fail(err)
		}
		return op(r.Context(), r, vendorID)
	})
}

func VendorCompareList(svc search.Service, logg *logger.Logger) http.HandlerFunc {
	return compareHandler(svc, logg, func(ctx context.Context, _ *http.Request, vendorID uuid.UUID) (int, any, error) {
		return ok(svc.Compare(ctx, vendorID))
	})
}

// VendorCompareAdd adds a supplier to the compare list. A full list or a
// duplicate is not an error; the response reports added=false.
func VendorCompareAdd(svc search.Service, logg *logger.Logger) http.HandlerFunc {
	return compareHandler(svc, logg, func(ctx context.Context, r *http.Request, vendorID uuid.UUID) (int, any, error) {
		body, err := decode[compareAddRequest](r)
		if err != nil {
			return fail(err)
		}
		return ok(svc.AddToCompare(ctx, vendorID, body.SupplierID))
	})
}

func VendorCompareRemove(svc search.Service, logg *logger.Logger) http.HandlerFunc {
	return compareHandler(svc, logg, func(ctx context.Context, r *http.Request, vendorID uuid.UUID) (int, any, error) {
		supplierID, err := pathUUID(r, "supplierId")
		if err != nil {
			return fail(err)
		}
		return ok(svc.RemoveFromCompare(ctx, vendorID, supplierID))
	})
}

func VendorCompareClear(svc search.Service, logg *logger.Logger) http.HandlerFunc {
	return compareHandler(svc, logg, func(ctx context.Context, _ *http.Request, vendorID uuid.UUID) (int, any, error) {
		return ok(search.CompareResult{Suppliers: []users.Profile{}}, svc.ClearCompare(ctx, vendorID))
	})
}
