package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/api/middleware"
	"github.com/streetfoodconnect/marketplace-backend/api/responses"
	"github.com/streetfoodconnect/marketplace-backend/api/validators"
	internalorders "github.com/streetfoodconnect/marketplace-backend/internal/orders"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/pagination"
)

// VendorCreate places an order from the calling vendor.
func VendorCreate(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		vendorID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body internalorders.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Create(r.Context(), vendorID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// VendorList pages through the calling vendor's orders, newest first.
func VendorList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return list(svc, logg, func(svc internalorders.Service) listFunc { return svc.ListByVendor })
}

// SupplierList pages through orders addressed to the calling supplier.
func SupplierList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return list(svc, logg, func(svc internalorders.Service) listFunc { return svc.ListBySupplier })
}

type listFunc func(ctx context.Context, id uuid.UUID, params internalorders.ListParams) (*internalorders.OrderList, error)

func list(svc internalorders.Service, logg *logger.Logger, pick func(internalorders.Service) listFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := pick(svc)(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Detail returns one order if the caller is its vendor or supplier.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// SupplierUpdateStatus advances an order along the status graph.
func SupplierUpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		supplierID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body internalorders.UpdateStatusInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateStatus(r.Context(), supplierID, orderID, body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func SupplierAccept(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return decide(svc, logg, func(svc internalorders.Service) decideFunc { return svc.Accept })
}

func SupplierReject(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return decide(svc, logg, func(svc internalorders.Service) decideFunc { return svc.Reject })
}

type decideFunc func(ctx context.Context, supplierID, orderID uuid.UUID) (*internalorders.Order, error)

func decide(svc internalorders.Service, logg *logger.Logger, pick func(internalorders.Service) decideFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		supplierID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := pick(svc)(r.Context(), supplierID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func parseListParams(r *http.Request) (internalorders.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return internalorders.ListParams{}, err
	}
	return internalorders.ListParams{
		Params: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
		Status: r.URL.Query().Get("status"),
	}, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

func actorID(r *http.Request) (uuid.UUID, error) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.IsAuthenticated() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return sess.UserID(), nil
}

func serviceUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")
}
