package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/metrics"
)

// Logging writes request.start and request.complete entries and records the
// request in HTTP metrics under its chi route pattern.
func Logging(logg *logger.Logger, httpMetrics *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"method": r.Method, "path": r.URL.Path})
				logg.Info(ctx, "request.start")
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			elapsed := time.Since(start)

			status := responseStatus(ww, r)
			httpMetrics.ObserveRequest(r.Method, routeLabel(r), status, elapsed)
			if logg != nil {
				logg.Info(logg.WithFields(ctx, map[string]any{
					"status":      status,
					"duration_ms": elapsed.Milliseconds(),
					"bytes":       ww.BytesWritten(),
				}), "request.complete")
			}
		})
	}
}

// responseStatus fills in what net/http implies when the handler never
// called WriteHeader: 200, or 101 for a hijacked websocket upgrade.
func responseStatus(ww chimw.WrapResponseWriter, r *http.Request) int {
	switch {
	case ww.Status() != 0:
		return ww.Status()
	case strings.EqualFold(r.Header.Get("Upgrade"), "websocket"):
		return http.StatusSwitchingProtocols
	default:
		return http.StatusOK
	}
}

// routeLabel keeps metric cardinality bounded by using the matched pattern.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
