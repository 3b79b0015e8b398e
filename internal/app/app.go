// Package app holds the process bootstrap every binary under cmd/ shares:
// .env loading, config, the structured logger and signal handling.
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

// RunFunc blocks until ctx is cancelled or the process fails.
type RunFunc func(ctx context.Context, cfg *config.Config, logg *logger.Logger) error

// Main boots service and exits non-zero when fn returns an error other than
// cancellation.
func Main(service string, fn RunFunc) {
	os.Exit(run(service, fn))
}

func run(service string, fn RunFunc) int {
	boot := logger.New(logger.Options{ServiceName: service})
	cfg, err := Load(service)
	if err != nil {
		boot.Error(context.Background(), "config.load_failed", err)
		return 1
	}
	logg := NewLogger(service, cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "service_kind": cfg.Service.Kind})

	if err := fn(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, service+".stopped", err)
		return 1
	}
	logg.Info(ctx, service+".shutdown")
	return 0
}

// Load reads an optional .env and then the SFC_ environment. Variables
// already set in the environment win over the file.
func Load(service string) (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = service
	return cfg, nil
}

func NewLogger(service string, cfg config.AppConfig) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: service,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		WarnStack:   cfg.LogWarnStack,
	})
}

// Close is for deferred shutdown of clients whose Close error is only worth
// a log line.
func Close(ctx context.Context, logg *logger.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{"resource": name, "error": err.Error()}), "app.close_failed")
	}
}
