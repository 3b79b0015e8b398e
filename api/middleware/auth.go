package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/streetfoodconnect/marketplace-backend/api/responses"
	appsession "github.com/streetfoodconnect/marketplace-backend/internal/session"
	pkgAuth "github.com/streetfoodconnect/marketplace-backend/pkg/auth"
	"github.com/streetfoodconnect/marketplace-backend/pkg/auth/session"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

// websocket clients cannot set headers from the browser, so the realtime
// upgrade may carry the token as a query parameter instead.
const websocketTokenParam = "access_token"

// Auth validates a bearer token and seeds the request context with an
// authenticated session. Requests without valid credentials get 401.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := authenticate(r, cfg, verifier)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r, sess, logg)))
		})
	}
}

// OptionalAuth attaches a session when valid credentials are present and an
// anonymous one otherwise. Used by endpoints that answer for both.
func OptionalAuth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := authenticate(r, cfg, verifier)
			if err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
				sess = appsession.Anonymous()
			}
			next.ServeHTTP(w, r.WithContext(withSession(r, sess, logg)))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, verifier session.AccessSessionChecker) (appsession.Session, error) {
	token := bearerToken(r)
	if token == "" {
		return appsession.Anonymous(), pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return appsession.Anonymous(), pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return appsession.Anonymous(), pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	if verifier != nil {
		ok, err := verifier.HasSession(r.Context(), claims.ID)
		if err != nil {
			return appsession.Anonymous(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		}
		if !ok {
			return appsession.Anonymous(), pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}

	sess, err := appsession.Restore(appsession.Identity{
		UserID:   claims.UserID,
		Role:     claims.Role,
		AccessID: claims.ID,
	})
	if err != nil {
		return appsession.Anonymous(), pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token identity")
	}
	return sess, nil
}

func withSession(r *http.Request, sess appsession.Session, logg *logger.Logger) context.Context {
	ctx := appsession.WithContext(r.Context(), sess)
	if logg != nil && sess.IsAuthenticated() {
		ctx = logg.WithUserID(ctx, sess.UserID().String())
		ctx = logg.WithActorRole(ctx, string(sess.Role()))
	}
	return ctx
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		if isWebsocketUpgrade(r) {
			return strings.TrimSpace(r.URL.Query().Get(websocketTokenParam))
		}
		return ""
	}
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
