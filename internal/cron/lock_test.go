package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, held := m.values[key]; held {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryLockStore) LockKey(name string) string { return "sfc:lock:" + name }

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, "cron-worker:dev", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "cron-worker:dev", 0)
	require.NoError(t, err)

	won, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, "sfc:lock:cron-worker:dev", first.Key())
	assert.Equal(t, defaultLockTTL, store.ttls[first.Key()])

	won, _ = second.Acquire(ctx)
	assert.False(t, won)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, first.Key(), "a replica that never won must not free the lock")

	require.NoError(t, first.Release(ctx))
	won, _ = second.Acquire(ctx)
	assert.True(t, won)
}

func TestRedisLockLeavesTakenOverKey(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	lock, err := NewRedisLock(store, "cron", time.Minute)
	require.NoError(t, err)

	won, _ := lock.Acquire(ctx)
	require.True(t, won)
	store.values[lock.Key()] = "another-replica"

	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "another-replica", store.values[lock.Key()])
	assert.Equal(t, time.Minute, store.ttls[lock.Key()])
}

func TestRedisLockReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	lock, _ := NewRedisLock(store, "cron", time.Minute)

	require.NoError(t, lock.Release(ctx))
	won, _ := lock.Acquire(ctx)
	require.True(t, won)
	require.NoError(t, lock.Release(ctx))

	store.err = errors.New("redis down")
	assert.NoError(t, lock.Release(ctx), "second release has no token to send")
}

func TestRedisLockSurfacesStoreErrors(t *testing.T) {
	store := newMemoryLockStore()
	store.err = errors.New("redis down")
	lock, _ := NewRedisLock(store, "cron", time.Minute)

	won, err := lock.Acquire(context.Background())
	assert.False(t, won)
	assert.ErrorContains(t, err, "redis down")
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "x", 0)
	assert.Error(t, err)
	_, err = NewRedisLock(newMemoryLockStore(), "", 0)
	assert.Error(t, err)
}
