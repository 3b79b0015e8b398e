// Package idempotency makes event consumers safe under at-least-once
// delivery by claiming each event id in Redis before side effects run.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConsumerRequired = errors.New("idempotency: consumer name is required")
	ErrEventIDRequired  = errors.New("idempotency: event id is required")
)

// Store is the subset of the redis client a Guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard records claimed events under
// sfc:idempotency:evt:<consumer>:<event_id> until the TTL lapses.
type Guard struct {
	store Store
	ttl   time.Duration
}

func NewGuard(store Store, ttl time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency: store is required")
	case ttl <= 0:
		return nil, errors.New("idempotency: ttl must be positive")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Claim reports whether the caller won the event. A false result means
// another delivery already handled (or is handling) it.
func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
}

// Release drops a claim so a redelivery can retry after a failed handler.
func (g *Guard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", ErrConsumerRequired
	}
	if eventID == uuid.Nil {
		return "", ErrEventIDRequired
	}
	return g.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
