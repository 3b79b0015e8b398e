package controllers

import (
	"net/http"

	"github.com/streetfoodconnect/marketplace-backend/internal/reviews"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

// VendorAddReview records the calling vendor's review of a supplier.
func VendorAddReview(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "reviews service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		vendorID, err := callerID(r)
		if err != nil {
			return fail(err)
		}
		in, err := decode[reviews.AddReviewInput](r)
		if err != nil {
			return fail(err)
		}
		return created(svc.Add(r.Context(), vendorID, in))
	})
}

// SupplierReviews lists a supplier's reviews, newest first.
func SupplierReviews(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "reviews service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		id, err := pathUUID(r, "supplierId")
		if err != nil {
			return fail(err)
		}
		list, err := svc.ListBySupplier(r.Context(), id)
		return ok(map[string]any{"reviews": list}, err)
	})
}
