package session

import (
	"path"
	"strings"

	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

const (
	PathRoot              = "/"
	PathLogin             = "/login"
	PathRegister          = "/register"
	PathVendorDashboard   = "/vendor/dashboard"
	PathSupplierDashboard = "/supplier/dashboard"
)

// GateDecision tells the SPA whether a path may render or where to go instead.
type GateDecision struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
}

var roleAreas = map[string]enums.UserRole{
	"/vendor":   enums.UserRoleVendor,
	"/supplier": enums.UserRoleSupplier,
}

// Gate decides access for an SPA path. Public pages are always allowed, the
// root redirects by role, role areas need the matching role and anything
// else only needs a signed-in user.
func Gate(p string, s Session) GateDecision {
	clean := cleanPath(p)

	switch clean {
	case PathLogin, PathRegister:
		return GateDecision{Allowed: true}
	case PathRoot:
		return GateDecision{Redirect: HomeFor(s)}
	}

	if !s.IsAuthenticated() {
		return GateDecision{Redirect: PathLogin}
	}
	for prefix, role := range roleAreas {
		if clean == prefix || strings.HasPrefix(clean, prefix+"/") {
			if s.Role() != role {
				return GateDecision{Redirect: PathRoot}
			}
			return GateDecision{Allowed: true}
		}
	}
	return GateDecision{Allowed: true}
}

// HomeFor is the landing page for the session's role.
func HomeFor(s Session) string {
	switch {
	case s.HasRole(enums.UserRoleVendor):
		return PathVendorDashboard
	case s.HasRole(enums.UserRoleSupplier):
		return PathSupplierDashboard
	default:
		return PathLogin
	}
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
