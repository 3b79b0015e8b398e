package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	appsession "github.com/streetfoodconnect/marketplace-backend/internal/session"
	"github.com/streetfoodconnect/marketplace-backend/pkg/auth"
	"github.com/streetfoodconnect/marketplace-backend/pkg/auth/session"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
}

func okHandler(captured *appsession.Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = SessionFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT(), stubSessionVerifier{ok: true}, nil)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT(), stubSessionVerifier{ok: true}, nil)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAttachesAuthenticatedSession(t *testing.T) {
	cfg := testJWT()
	userID := uuid.New()
	token := mintTestToken(t, cfg, userID, enums.UserRoleSupplier)

	var captured appsession.Session
	handler := Auth(cfg, stubSessionVerifier{ok: true}, nil)(okHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !captured.IsAuthenticated() || captured.UserID() != userID || captured.Role() != enums.UserRoleSupplier {
		t.Fatalf("unexpected session %+v", captured.Snapshot())
	}
	if captured.AccessID() == "" {
		t.Fatal("expected access id on session")
	}
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	cfg := testJWT()
	token := mintTestToken(t, cfg, uuid.New(), enums.UserRoleVendor)
	handler := Auth(cfg, stubSessionVerifier{ok: false}, nil)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked session got %d", resp.Code)
	}
}

func TestAuthReportsSessionStoreOutage(t *testing.T) {
	cfg := testJWT()
	token := mintTestToken(t, cfg, uuid.New(), enums.UserRoleVendor)
	handler := Auth(cfg, stubSessionVerifier{err: errors.New("redis down")}, nil)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestAuthAcceptsQueryTokenOnWebsocketUpgrade(t *testing.T) {
	cfg := testJWT()
	token := mintTestToken(t, cfg, uuid.New(), enums.UserRoleVendor)

	var captured appsession.Session
	handler := Auth(cfg, stubSessionVerifier{ok: true}, nil)(okHandler(&captured))

	plain := httptest.NewRequest(http.MethodGet, "/api/v1/realtime?access_token="+token, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, plain)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("query token must be ignored without upgrade, got %d", resp.Code)
	}

	upgrade := httptest.NewRequest(http.MethodGet, "/api/v1/realtime?access_token="+token, nil)
	upgrade.Header.Set("Upgrade", "websocket")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, upgrade)
	if resp.Code != http.StatusOK || !captured.IsAuthenticated() {
		t.Fatalf("expected authenticated upgrade, got %d", resp.Code)
	}
}

func TestOptionalAuthFallsBackToAnonymous(t *testing.T) {
	var captured appsession.Session
	handler := OptionalAuth(testJWT(), stubSessionVerifier{ok: true}, nil)(okHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.IsAuthenticated() || captured.State() != appsession.StateAnonymous {
		t.Fatalf("expected anonymous session, got %s", captured.State())
	}
}

func TestRequireRole(t *testing.T) {
	vendor, _ := appsession.Restore(appsession.Identity{UserID: uuid.New(), Role: enums.UserRoleVendor})
	supplier, _ := appsession.Restore(appsession.Identity{UserID: uuid.New(), Role: enums.UserRoleSupplier})
	handler := RequireRole(nil, enums.UserRoleVendor)(okHandler(nil))

	cases := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"anonymous", context.Background(), http.StatusUnauthorized},
		{"matching role", appsession.WithContext(context.Background(), vendor), http.StatusOK},
		{"other role", appsession.WithContext(context.Background(), supplier), http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/orders", nil).WithContext(tc.ctx)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.want, resp.Code)
		}
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	payload := auth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    session.NewAccessID(),
	}
	token, err := auth.MintAccessToken(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}
