package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func loginRequest(body, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.RemoteAddr = remote
	return req
}

func statusHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) })
}

func TestAuthRateLimitForwardsBodyIntact(t *testing.T) {
	body := `{"email":"tester@example.com","password":"secret"}`
	var seen string
	h := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 2, 2), newFakeRateStore(), nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			seen = string(b)
		}))

	h.ServeHTTP(httptest.NewRecorder(), loginRequest(body, "1.2.3.4:5678"))
	assert.Equal(t, body, seen)
}

func TestAuthRateLimitEmailBucket(t *testing.T) {
	h := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 0, 2), newFakeRateStore(), nil)(statusHandler(http.StatusOK))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, loginRequest(`{"email":"blocked@example.com"}`, "1.2.3.4:1"))
		if i < 2 {
			assert.Equal(t, http.StatusOK, rec.Code)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), string(pkgerrors.CodeRateLimit))
	}
}

func TestAuthRateLimitIPBucket(t *testing.T) {
	h := AuthRateLimit(NewAuthRateLimitPolicy("register", time.Minute, 1, 0), newFakeRateStore(), nil)(statusHandler(http.StatusOK))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, loginRequest(`{"email":"a@example.com"}`, "5.6.7.8:1234"))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, loginRequest(`{"email":"b@example.com"}`, "5.6.7.8:9999"))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestAuthRateLimitDisabledPolicy(t *testing.T) {
	store := newFakeRateStore()
	h := AuthRateLimit(NewAuthRateLimitPolicy("login", 0, 1, 1), store, nil)(statusHandler(http.StatusNoContent))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, loginRequest(`{}`, "1.1.1.1:1"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Empty(t, store.counts)
}

func TestAuthRateLimitScopes(t *testing.T) {
	store := newFakeRateStore()
	h := AuthRateLimit(NewAuthRateLimitPolicy(" Login ", time.Minute, 5, 5), store, nil)(statusHandler(http.StatusOK))

	req := loginRequest(`{"email":" Vendor@Example.com "}`, "10.0.0.2:1")
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, int64(1), store.counts["ip:login:9.9.9.9"])
	assert.Equal(t, int64(1), store.counts["email:login:"+hashValue("vendor@example.com")])
}

func TestAuthRateLimitStoreFailureIsDependencyError(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis: connection refused")
	h := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 5, 5), store, nil)(statusHandler(http.StatusOK))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, loginRequest(`{"email":"x@y.z"}`, "1.1.1.1:1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClientIPFallbacks(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "7.7.7.7:80"
	assert.Equal(t, "7.7.7.7", clientIP(req))

	req.Header.Set("X-Real-IP", "8.8.8.8")
	assert.Equal(t, "8.8.8.8", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 6.6.6.6 ,1.1.1.1")
	assert.Equal(t, "6.6.6.6", clientIP(req))
}
