package controllers

import (
	"net/http"

	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

func UserMe(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "users service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		id, err := callerID(r)
		if err != nil {
			return fail(err)
		}
		return ok(svc.GetProfile(r.Context(), id))
	})
}

// UserGet serves any user's public profile; SupplierProfile is the same view
// under the supplier routes.
func UserGet(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return profileByParam(svc, logg, "userId")
}

func profileByParam(svc users.Service, logg *logger.Logger, param string) http.HandlerFunc {
	return handle(logg, "users service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		id, err := pathUUID(r, param)
		if err != nil {
			return fail(err)
		}
		return ok(svc.GetProfile(r.Context(), id))
	})
}

// UserUpdateMe applies a partial profile update to the caller.
func UserUpdateMe(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "users service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		id, err := callerID(r)
		if err != nil {
			return fail(err)
		}
		patch, err := decode[users.ProfilePatch](r)
		if err != nil {
			return fail(err)
		}
		return ok(svc.UpdateProfile(r.Context(), id, patch))
	})
}
