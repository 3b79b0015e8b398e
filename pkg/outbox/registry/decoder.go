package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

// ErrNoDecoder is returned for event type and version pairs nobody registered.
var ErrNoDecoder = errors.New("no decoder registered")

// DecodeFunc turns an envelope's data field into a typed payload.
type DecodeFunc func(data json.RawMessage) (any, error)

type schema struct {
	event   enums.OutboxEventType
	version int
}

// DecoderRegistry maps (event type, payload version) to a decoder so
// consumers can accept old and new payload shapes side by side.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[schema]DecodeFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[schema]DecodeFunc{}}
}

// Register replaces any decoder already bound to the pair.
func (r *DecoderRegistry) Register(event enums.OutboxEventType, version int, fn DecodeFunc) {
	r.mu.Lock()
	r.decoders[schema{event, version}] = fn
	r.mu.Unlock()
}

// RegisterJSON binds a plain json.Unmarshal decoder producing T.
func RegisterJSON[T any](r *DecoderRegistry, event enums.OutboxEventType, version int) {
	r.Register(event, version, func(data json.RawMessage) (any, error) {
		var out T
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode %s v%d: %w", event, version, err)
		}
		return out, nil
	})
}

func (r *DecoderRegistry) Decode(event enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	r.mu.RLock()
	fn, ok := r.decoders[schema{event, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s v%d", ErrNoDecoder, event, version)
	}
	return fn(data)
}

// DecodeAs decodes and asserts the payload type in one step.
func DecodeAs[T any](r *DecoderRegistry, event enums.OutboxEventType, version int, data json.RawMessage) (T, error) {
	var zero T
	v, err := r.Decode(event, version, data)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("decoder for %s v%d produced %T", event, version, v)
	}
	return out, nil
}
