package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvAppEnv, "dev")
	t.Setenv(config.EnvPort, "8080")
	t.Setenv(config.EnvDBDSN, "postgres://localhost/sfc")
	t.Setenv(config.EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(config.EnvJWTSecret, "secret")
	t.Setenv(config.EnvJWTIssuer, "streetfood")
	t.Setenv(config.EnvJWTExpMins, "15")
}

func TestLoadStampsServiceKind(t *testing.T) {
	setEnv(t)
	cfg, err := Load("review-worker")
	require.NoError(t, err)
	assert.Equal(t, "review-worker", cfg.Service.Kind)
}

func TestRunExitCodes(t *testing.T) {
	setEnv(t)
	t.Setenv("SFC_LOG_LEVEL", "disabled")

	assert.Equal(t, 0, run("api", func(context.Context, *config.Config, *logger.Logger) error { return nil }))
	assert.Equal(t, 0, run("api", func(context.Context, *config.Config, *logger.Logger) error { return context.Canceled }))
	assert.Equal(t, 1, run("api", func(context.Context, *config.Config, *logger.Logger) error { return errors.New("boom") }))

	var got *config.Config
	run("cron-worker", func(_ context.Context, cfg *config.Config, _ *logger.Logger) error {
		got = cfg
		return nil
	})
	require.NotNil(t, got)
	assert.Equal(t, "cron-worker", got.Service.Kind)
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("already closed") }

func TestCloseLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{Output: &buf})
	Close(context.Background(), logg, "redis", failingCloser{})
	assert.Contains(t, buf.String(), "app.close_failed")
	assert.Contains(t, buf.String(), `"resource":"redis"`)
}
