package search

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	compareTTL = 7 * 24 * time.Hour

	maxSwapAttempts = 5
)

// ErrCompareContention is returned when concurrent writers keep changing the
// list underneath an update.
var ErrCompareContention = errors.New("compare list changed concurrently")

type compareKV interface {
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SwapIfEquals(ctx context.Context, key, prev, next string, ttl time.Duration) (bool, error)
	CompareKey(vendorID string) string
}

// CompareStore persists each vendor's compare list as an ordered JSON id list.
type CompareStore struct {
	kv compareKV
}

func NewCompareStore(kv compareKV) *CompareStore {
	return &CompareStore{kv: kv}
}

// Load returns the stored ids; a vendor with no list gets an empty slice.
func (s *CompareStore) Load(ctx context.Context, vendorID uuid.UUID) ([]uuid.UUID, error) {
	_, ids, err := s.read(ctx, s.kv.CompareKey(vendorID.String()))
	return ids, err
}

// Update applies mutate to the stored list and writes the result back only
// if nobody changed the list in between, retrying on a lost race. mutate
// reports whether it changed anything; an unchanged list is not written.
// Writing refreshes the TTL and an empty list deletes the key.
func (s *CompareStore) Update(ctx context.Context, vendorID uuid.UUID, mutate func([]uuid.UUID) ([]uuid.UUID, bool)) ([]uuid.UUID, bool, error) {
	key := s.kv.CompareKey(vendorID.String())
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		raw, ids, err := s.read(ctx, key)
		if err != nil {
			return nil, false, err
		}
		next, changed := mutate(ids)
		if !changed {
			return ids, false, nil
		}
		encoded := ""
		if len(next) > 0 {
			b, err := json.Marshal(next)
			if err != nil {
				return nil, false, err
			}
			encoded = string(b)
		}
		swapped, err := s.kv.SwapIfEquals(ctx, key, raw, encoded, compareTTL)
		if err != nil {
			return nil, false, err
		}
		if swapped {
			return next, true, nil
		}
	}
	return nil, false, ErrCompareContention
}

func (s *CompareStore) read(ctx context.Context, key string) (string, []uuid.UUID, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return "", []uuid.UUID{}, nil
	}
	if err != nil {
		return "", nil, err
	}
	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return "", nil, err
	}
	return raw, ids, nil
}

func (s *CompareStore) Clear(ctx context.Context, vendorID uuid.UUID) error {
	return s.kv.Del(ctx, s.kv.CompareKey(vendorID.String()))
}
