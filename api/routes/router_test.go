package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streetfoodconnect/marketplace-backend/api/controllers"
	"github.com/streetfoodconnect/marketplace-backend/internal/search"
	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	pkgAuth "github.com/streetfoodconnect/marketplace-backend/pkg/auth"
	"github.com/streetfoodconnect/marketplace-backend/pkg/auth/session"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubSearchService struct {
	search.Service
}

func (stubSearchService) Compare(context.Context, uuid.UUID) (*search.CompareResult, error) {
	return &search.CompareResult{Suppliers: []users.Profile{}}, nil
}

func (stubSearchService) Search(context.Context, search.Filter) ([]users.Profile, error) {
	return []users.Profile{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
	}
}

func testDeps(cfg *config.Config) Deps {
	return Deps{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "test-routing", Level: "debug", Output: io.Discard}),
		Health:   map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}},
		Sessions: stubSessionManager{},
		Search:   stubSearchService{},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	return NewRouter(testDeps(cfg))
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-SFC-Env"); got != "test" {
		t.Fatalf("expected env header test got %q", got)
	}
}

func TestHealthReadyFailsOnDependency(t *testing.T) {
	deps := testDeps(testConfig())
	deps.Health["redis"] = stubPinger{err: errors.New("connection refused")}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestSessionIsAnonymousWithoutToken(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"state":"anonymous"`) {
		t.Fatalf("expected anonymous snapshot, got %s", resp.Body.String())
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestVendorGroupRequiresVendorRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/compare", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSupplier))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for supplier got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/vendor/compare", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleVendor))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for vendor got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestSupplierGroupRequiresSupplierRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/supplier/orders", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleVendor))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for vendor got %d", resp.Code)
	}
}

func TestSharedRoutesAcceptEitherRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	for _, role := range []enums.UserRole{enums.UserRoleVendor, enums.UserRoleSupplier} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/suppliers?q=onion", nil)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", role, resp.Code)
		}
	}
}

func TestMissingServiceIsInternalError(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/supplier/analytics", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSupplier))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	deps := testDeps(testConfig())
	deps.Gatherer = reg
	deps.HTTPMetrics = metrics.NewHTTPMetrics(reg)
	router := NewRouter(deps)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `route="/health/live"`) {
		t.Fatalf("expected live route in metrics output:\n%s", resp.Body.String())
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
