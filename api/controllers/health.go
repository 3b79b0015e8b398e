package controllers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streetfoodconnect/marketplace-backend/api/responses"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

const (
	readinessTimeout = 2 * time.Second
	envHeader        = "X-SFC-Env"
)

// Pinger is any dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency in parallel. Any failure answers 503
// with the per-dependency results in the error details.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		checks, failed := probe(r.Context(), deps)
		if len(failed) > 0 {
			sort.Strings(failed)
			err := pkgerrors.Newf(pkgerrors.CodeDependency, "%v not ready", failed).WithDetails(map[string]any{"checks": checks})
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

func probe(ctx context.Context, deps map[string]Pinger) (map[string]string, []string) {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(deps))
		failed []string
		g      errgroup.Group
	)
	for name, dep := range deps {
		if dep == nil {
			continue
		}
		g.Go(func() error {
			status := "ok"
			err := dep.Ping(ctx)
			if err != nil {
				status = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			checks[name] = status
			if err != nil {
				failed = append(failed, name)
			}
			return nil
		})
	}
	_ = g.Wait()
	return checks, failed
}
