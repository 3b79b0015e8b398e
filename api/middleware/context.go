package middleware

import (
	"context"

	"github.com/streetfoodconnect/marketplace-backend/internal/session"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

// SessionFromContext returns the session Auth attached, or an anonymous one.
func SessionFromContext(ctx context.Context) session.Session {
	return session.FromContext(ctx)
}

func UserIDFromContext(ctx context.Context) string {
	s := session.FromContext(ctx)
	if !s.IsAuthenticated() {
		return ""
	}
	return s.UserID().String()
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	s := session.FromContext(ctx)
	if !s.IsAuthenticated() {
		return ""
	}
	return s.Role()
}
