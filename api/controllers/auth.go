package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/internal/auth"
	"github.com/streetfoodconnect/marketplace-backend/internal/realtime"
	appsession "github.com/streetfoodconnect/marketplace-backend/internal/session"
	pkgAuth "github.com/streetfoodconnect/marketplace-backend/pkg/auth"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

const tokenHeader = "X-SFC-Token"

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthLogin signs the user in with the role picked on the login form.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "auth service", svc != nil, func(w http.ResponseWriter, r *http.Request) (int, any, error) {
		body, err := decode[auth.LoginRequest](r)
		if err != nil {
			return fail(err)
		}
		result, sess, err := svc.Login(r.Context(), body)
		if err != nil {
			return fail(err)
		}
		w.Header().Set(tokenHeader, result.AccessToken)
		return ok(map[string]any{
			"tokens":  result.TokenPair,
			"user":    result.User,
			"session": sess.Snapshot(),
		}, nil)
	})
}

// AuthRegister creates the account and returns tokens for the new session.
func AuthRegister(svc auth.RegisterService, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "register service", svc != nil, func(w http.ResponseWriter, r *http.Request) (int, any, error) {
		body, err := decode[auth.RegisterRequest](r)
		if err != nil {
			return fail(err)
		}
		result, err := svc.Register(r.Context(), body)
		if err != nil {
			return fail(err)
		}
		w.Header().Set(tokenHeader, result.AccessToken)
		return created(map[string]any{"tokens": result.TokenPair, "user": result.User}, nil)
	})
}

// AuthLogout revokes the refresh session behind the presented access token,
// even when that token has already expired, and tells the user's open
// realtime connections they were signed out.
func AuthLogout(svc auth.Service, publisher realtime.Publisher, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "auth service", svc != nil, func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		claims, err := expiredOKClaims(r, cfg)
		if err != nil {
			return fail(err)
		}
		if err := svc.Logout(r.Context(), claims.ID); err != nil {
			return fail(err)
		}

		sess, err := appsession.Restore(appsession.Identity{UserID: claims.UserID, Role: claims.Role, AccessID: claims.ID})
		if err == nil {
			sess, _ = sess.SignOut()
		}
		announceAuthChange(r.Context(), publisher, claims.UserID, sess, logg)
		return ok(map[string]any{"status": "logged_out", "session": sess.Snapshot()}, nil)
	})
}

// AuthRefresh rotates the refresh token and issues a new access token.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "auth service", svc != nil, func(w http.ResponseWriter, r *http.Request) (int, any, error) {
		body, err := decode[refreshRequest](r)
		if err != nil {
			return fail(err)
		}
		token, err := parseBearerToken(r)
		if err != nil {
			return fail(err)
		}
		pair, err := svc.Refresh(r.Context(), token, body.RefreshToken)
		if err != nil {
			return fail(err)
		}
		w.Header().Set(tokenHeader, pair.AccessToken)
		return ok(pair, nil)
	})
}

func parseBearerToken(r *http.Request) (string, error) {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}

func expiredOKClaims(r *http.Request, cfg config.JWTConfig) (*pkgAuth.AccessTokenClaims, error) {
	token, err := parseBearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}

func announceAuthChange(ctx context.Context, publisher realtime.Publisher, userID uuid.UUID, sess appsession.Session, logg *logger.Logger) {
	if publisher == nil {
		return
	}
	event, err := realtime.NewEvent(realtime.EventAuthChanged, sess.Snapshot())
	if err == nil {
		err = publisher.Publish(ctx, realtime.SessionTopic(userID), event)
	}
	if err != nil && logg != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "auth change broadcast failed")
	}
}
