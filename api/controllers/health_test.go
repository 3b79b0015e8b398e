package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReadyReportsEveryCheck(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	deps := map[string]Pinger{
		"db":    pingFunc(func(context.Context) error { return nil }),
		"redis": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		"off":   nil,
	}

	resp := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "test", resp.Header().Get(envHeader))
	assert.Equal(t, "30", resp.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Details struct {
				Checks map[string]string `json:"checks"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"db": "ok", "redis": "connection refused"}, body.Error.Details.Checks)
}

func TestHealthReadyAllOK(t *testing.T) {
	cfg := &config.Config{}
	deps := map[string]Pinger{"db": pingFunc(func(context.Context) error { return nil })}

	resp := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"ready"`)
}
