package middleware

import (
	"net/http"
	"slices"

	"github.com/streetfoodconnect/marketplace-backend/api/responses"
	"github.com/streetfoodconnect/marketplace-backend/internal/session"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

// RequireRole is the server side of the client route gate: 401 without a
// session and 403 when the session's role is not one of roles.
func RequireRole(logg *logger.Logger, roles ...enums.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := roleGate(SessionFromContext(r.Context()), roles); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func roleGate(sess session.Session, roles []enums.UserRole) error {
	switch {
	case !sess.IsAuthenticated():
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	case !slices.Contains(roles, sess.Role()):
		return pkgerrors.New(pkgerrors.CodeForbidden, "role required").
			WithDetails(map[string]any{"required_roles": roles})
	}
	return nil
}
