package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/internal/inventory"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

// SupplierOwnInventory lists the calling supplier's stock.
func SupplierOwnInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "inventory service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		supplierID, err := callerID(r)
		if err != nil {
			return fail(err)
		}
		items, err := svc.List(r.Context(), supplierID)
		return ok(map[string]any{"items": items}, err)
	})
}

// SupplierInventory lists a supplier's items for browsing vendors.
func SupplierInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "inventory service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		supplierID, err := pathUUID(r, "supplierId")
		if err != nil {
			return fail(err)
		}
		items, err := svc.List(r.Context(), supplierID)
		return ok(map[string]any{"items": items}, err)
	})
}

func SupplierCreateInventoryItem(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "inventory service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		supplierID, err := callerID(r)
		if err != nil {
			return fail(err)
		}
		in, err := decode[inventory.CreateItemInput](r)
		if err != nil {
			return fail(err)
		}
		return created(svc.Create(r.Context(), supplierID, in))
	})
}

// ownedItem resolves the calling supplier and the {itemId} they act on.
func ownedItem(r *http.Request) (supplierID, itemID uuid.UUID, err error) {
	if supplierID, err = callerID(r); err != nil {
		return
	}
	itemID, err = pathUUID(r, "itemId")
	return
}

func SupplierUpdateInventoryItem(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "inventory service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		supplierID, itemID, err := ownedItem(r)
		if err != nil {
			return fail(err)
		}
		in, err := decode[inventory.UpdateItemInput](r)
		if err != nil {
			return fail(err)
		}
		return ok(svc.Update(r.Context(), supplierID, itemID, in))
	})
}

func SupplierDeleteInventoryItem(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "inventory service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		supplierID, itemID, err := ownedItem(r)
		if err != nil {
			return fail(err)
		}
		return ok(map[string]any{"deleted": true, "item_id": itemID}, svc.Delete(r.Context(), supplierID, itemID))
	})
}
