package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/metrics"
)

func TestLoggingRecordsRoutePatternAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	r := chi.NewRouter()
	r.Use(Logging(logg, metrics.NewHTTPMetrics(reg)))
	r.Get("/api/v1/users/{userId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/42", nil))

	expected := `
# HELP http_requests_total HTTP requests processed, by route and status.
# TYPE http_requests_total counter
http_requests_total{method="GET",route="/api/v1/users/{userId}",status="404"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
	if !strings.Contains(buf.String(), `"msg":"request.complete"`) || !strings.Contains(buf.String(), `"status":404`) {
		t.Fatalf("expected completion log with status, got %s", buf.String())
	}
}

func TestResponseStatusDefaults(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	ww := chimw.NewWrapResponseWriter(httptest.NewRecorder(), plain.ProtoMajor)
	if got := responseStatus(ww, plain); got != http.StatusOK {
		t.Fatalf("expected implicit 200, got %d", got)
	}

	upgrade := httptest.NewRequest(http.MethodGet, "/ws", nil)
	upgrade.Header.Set("Upgrade", "WebSocket")
	if got := responseStatus(ww, upgrade); got != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101 for an upgrade, got %d", got)
	}

	ww.WriteHeader(http.StatusTeapot)
	if got := responseStatus(ww, upgrade); got != http.StatusTeapot {
		t.Fatalf("expected written status to win, got %d", got)
	}
}

func TestRouteLabelUnmatched(t *testing.T) {
	if got := routeLabel(httptest.NewRequest(http.MethodGet, "/nowhere", nil)); got != "unmatched" {
		t.Fatalf("expected unmatched, got %q", got)
	}
}
