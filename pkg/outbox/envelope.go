// Package outbox implements the transactional outbox: domain mutations write
// an event row in the same transaction, and the publisher drains it later.
package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

// PayloadVersion is stamped on envelopes whose emitter did not pick one.
const PayloadVersion = 1

var ErrEmptyData = errors.New("outbox envelope has no data")

// ActorRef identifies who caused the event.
type ActorRef struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and sent as
// the Pub/Sub message body. EventID is the consumer idempotency key.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ParseEnvelope decodes raw and rejects envelopes a consumer could not act
// on: a missing or malformed event id, or empty data.
func ParseEnvelope(raw []byte) (PayloadEnvelope, uuid.UUID, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, uuid.Nil, fmt.Errorf("decode envelope: %w", err)
	}
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return env, uuid.Nil, fmt.Errorf("envelope event id %q: %w", env.EventID, err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, id, ErrEmptyData
	}
	return env, id, nil
}
