package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestWriteSuccessWrapsData(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"order_id": "o-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "o-1", body.Data.(map[string]any)["order_id"])
}

func TestWriteErrorKeepsClientMessageAndDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeStateConflict, "cannot move delivered order").
		WithDetails(map[string]string{"from": "delivered", "to": "pending"})
	WriteError(context.Background(), nil, w, err)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	got := decodeError(t, w)
	assert.Equal(t, "STATE_CONFLICT", got.Code)
	assert.Equal(t, "cannot move delivered order", got.Message)
	assert.False(t, got.Retryable)
	assert.NotNil(t, got.Details)
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	got := decodeError(t, w)
	assert.Equal(t, string(pkgerrors.CodeInternal), got.Code)
	assert.Equal(t, "internal server error", got.Message)
	assert.True(t, got.Retryable)
	assert.Nil(t, got.Details)
}

func TestWriteErrorUnauthorizedDropsDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid email or password").
		WithDetails(map[string]string{"email": "known"})
	WriteError(context.Background(), nil, w, err)

	got := decodeError(t, w)
	assert.Equal(t, "Invalid email or password", got.Message)
	assert.Nil(t, got.Details)
}

func TestWriteErrorRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, retryAfterSeconds, w.Header().Get("Retry-After"))

	w = httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestWriteErrorEchoesRequestIDAndLogsByStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{Output: &buf})
	ctx := logg.WithRequestID(context.Background(), "req-9")

	w := httptest.NewRecorder()
	WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5"))
	assert.Equal(t, "req-9", decodeError(t, w).RequestID)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "request.rejected")

	buf.Reset()
	w = httptest.NewRecorder()
	WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("redis down"), "cache unavailable"))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.True(t, strings.Contains(buf.String(), "error_chain"))
	assert.Equal(t, "dependency unavailable", decodeError(t, w).Message)
}
