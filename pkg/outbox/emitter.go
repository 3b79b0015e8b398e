package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

// Event is a domain fact ready to be queued.
type Event struct {
	Type          enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

type eventInserter interface {
	Insert(tx *gorm.DB, row models.OutboxEvent) error
}

// Emitter queues events inside the caller's transaction.
type Emitter struct {
	rows eventInserter
	logg *logger.Logger
	now  func() time.Time
}

func NewEmitter(rows *Repository, logg *logger.Logger) *Emitter {
	return &Emitter{rows: rows, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

// Emit fails when tx is nil so an event can never commit separately from the
// mutation it describes.
func (e *Emitter) Emit(ctx context.Context, tx *gorm.DB, ev Event) error {
	switch {
	case tx == nil:
		return ErrTxRequired
	case !ev.Type.IsValid():
		return fmt.Errorf("unknown outbox event type %q", ev.Type)
	case !ev.AggregateType.IsValid():
		return fmt.Errorf("unknown outbox aggregate type %q", ev.AggregateType)
	case ev.AggregateID == uuid.Nil:
		return errors.New("outbox event needs an aggregate id")
	}

	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", ev.Type, err)
	}
	id := uuid.New()
	env := PayloadEnvelope{
		Version:    ev.Version,
		EventID:    id.String(),
		OccurredAt: ev.OccurredAt,
		Actor:      ev.Actor,
		Data:       data,
	}
	if env.Version <= 0 {
		env.Version = PayloadVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = e.now()
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", ev.Type, err)
	}

	// The row id doubles as the envelope's event_id so consumers and the
	// dead-letter table agree on identity.
	if err := e.rows.Insert(tx, models.OutboxEvent{
		ID:            id,
		EventType:     ev.Type,
		AggregateType: ev.AggregateType,
		AggregateID:   ev.AggregateID,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("queue %s: %w", ev.Type, err)
	}

	if e.logg != nil {
		e.logg.Debug(e.logg.WithFields(ctx, map[string]any{
			"event_id":     env.EventID,
			"event_type":   ev.Type,
			"aggregate_id": ev.AggregateID,
		}), "outbox.queued")
	}
	return nil
}
