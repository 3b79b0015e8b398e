package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	keys   map[string]time.Duration
	setErr error
}

func newMemoryStore() *memoryStore { return &memoryStore{keys: map[string]time.Duration{}} }

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sfc:idempotency:" + scope + ":" + id
}

func TestClaimOncePerConsumer(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewGuard(store, time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	id := uuid.New()

	first, err := guard.Claim(ctx, "review-worker", id)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := guard.Claim(ctx, "review-worker", id)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := guard.Claim(ctx, "notifier", id)
	require.NoError(t, err)
	assert.True(t, other, "claims are scoped per consumer")

	assert.Equal(t, time.Hour, store.keys["sfc:idempotency:evt:review-worker:"+id.String()])
}

func TestReleaseAllowsRetry(t *testing.T) {
	guard, err := NewGuard(newMemoryStore(), time.Minute)
	require.NoError(t, err)
	ctx := context.Background()
	id := uuid.New()

	_, err = guard.Claim(ctx, "review-worker", id)
	require.NoError(t, err)
	require.NoError(t, guard.Release(ctx, "review-worker", id))

	claimed, err := guard.Claim(ctx, "review-worker", id)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestClaimRejectsBadInput(t *testing.T) {
	guard, err := NewGuard(newMemoryStore(), time.Minute)
	require.NoError(t, err)

	_, err = guard.Claim(context.Background(), "", uuid.New())
	assert.ErrorIs(t, err, ErrConsumerRequired)
	_, err = guard.Claim(context.Background(), "review-worker", uuid.Nil)
	assert.ErrorIs(t, err, ErrEventIDRequired)
}

func TestClaimPropagatesStoreError(t *testing.T) {
	store := newMemoryStore()
	store.setErr = errors.New("redis down")
	guard, err := NewGuard(store, time.Minute)
	require.NoError(t, err)

	_, err = guard.Claim(context.Background(), "review-worker", uuid.New())
	assert.EqualError(t, err, "redis down")
}

func TestNewGuardValidation(t *testing.T) {
	_, err := NewGuard(nil, time.Minute)
	assert.Error(t, err)
	_, err = NewGuard(newMemoryStore(), 0)
	assert.Error(t, err)
}
