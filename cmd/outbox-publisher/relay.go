package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/metrics"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	maxIdleBackoff = 10 * time.Second
	pollJitter     = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type eventStore interface {
	ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	Park(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error
}

type deadLetterStore interface {
	Insert(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

type brokerPinger interface {
	Ping(context.Context) error
}

type RelayParams struct {
	Config  config.OutboxConfig
	Logger  *logger.Logger
	Metrics *metrics.OutboxMetrics
	DB      txRunner
	Broker  brokerPinger
	Events  eventStore
	DLQ     deadLetterStore
	Catalog resolver
	Topics  *topicSet
}

// Relay moves committed outbox rows to Pub/Sub. Rows of one aggregate share
// an ordering key, so an order's status changes reach consumers in sequence.
type Relay struct {
	logg        *logger.Logger
	metrics     *metrics.OutboxMetrics
	db          txRunner
	broker      brokerPinger
	events      eventStore
	dlq         deadLetterStore
	catalog     resolver
	topics      *topicSet
	batch       int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil || p.Events == nil || p.DLQ == nil:
		return nil, errors.New("database, outbox and dlq stores are required")
	case p.Broker == nil || p.Topics == nil:
		return nil, errors.New("pubsub broker and topics are required")
	case p.Catalog == nil:
		return nil, errors.New("event catalog is required")
	}
	r := &Relay{
		logg:        p.Logger,
		metrics:     p.Metrics,
		db:          p.DB,
		broker:      p.Broker,
		events:      p.Events,
		dlq:         p.DLQ,
		catalog:     p.Catalog,
		topics:      p.Topics,
		batch:       orDefault(p.Config.BatchSize, 50),
		maxAttempts: orDefault(p.Config.MaxAttempts, 10),
		poll:        time.Duration(orDefault(p.Config.PollIntervalMS, 500)) * time.Millisecond,
		now:         func() time.Time { return time.Now().UTC() },
	}
	return r, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Run polls until ctx ends. A full batch is followed immediately by the next
// one; an empty or partial batch waits one poll interval; a failed batch
// backs off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	defer r.topics.Stop()
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	if err := r.broker.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub not ready: %w", err)
	}

	var wait time.Duration
	failures := 0
	for {
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		n, err := r.Drain(ctx)
		switch {
		case err != nil:
			failures++
			wait = backoff(r.poll, failures)
			r.logg.Error(r.logg.WithField(ctx, "retry_in", wait.String()), "outbox.batch_failed", err)
		case n >= r.batch:
			failures, wait = 0, 0
		default:
			failures = 0
			wait = r.poll + rand.N(pollJitter)
		}
	}
}

// Drain ships one batch inside a single transaction and reports how many
// rows it claimed. A publish failure is recorded on its row and does not
// abort the batch; only bookkeeping errors do.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var claimed int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.ClaimBatch(tx, r.batch, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(rows)
		for _, row := range rows {
			if err := r.ship(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (r *Relay) ship(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID,
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID,
		"attempt_count": row.AttemptCount,
	})

	resolved, err := r.catalog.Resolve(row)
	if err != nil {
		return r.park(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	ctx = r.logg.WithFields(ctx, map[string]any{"event_id": resolved.EventID, "topic": resolved.Route.Topic})

	err = r.publish(ctx, row, resolved)
	switch {
	case err == nil:
		if err := r.events.MarkPublished(tx, row.ID, r.now()); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.metrics.Published(string(row.EventType))
		r.logg.Debug(ctx, "outbox.published")
		return nil
	case registry.IsPermanent(err):
		return r.park(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	case row.AttemptCount+1 >= r.maxAttempts:
		return r.park(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err))
	}

	r.metrics.Failed(string(row.EventType))
	r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox.publish_retry")
	if err := r.events.RecordFailure(tx, row.ID, err); err != nil {
		return fmt.Errorf("record failure on %s: %w", row.ID, err)
	}
	return nil
}

// park copies the row into outbox_dlq and retires it from polling.
func (r *Relay) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	if err := r.dlq.Insert(tx, row.DeadLetter(reason, msg, r.now())); err != nil {
		return fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	if err := r.events.Park(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("park %s: %w", row.ID, err)
	}
	r.metrics.DeadLettered(string(row.EventType), reason.String())
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"error": msg, "reason": reason}), "outbox.dead_lettered")
	return nil
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.Resolved) error {
	pub := r.topics.Get(resolved.Route.Topic)
	if pub == nil {
		return registry.Permanent(fmt.Errorf("no publisher for topic %q", resolved.Route.Topic))
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: row.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.EventID.String(),
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"occurred_at":    resolved.Envelope.OccurredAt.Format(time.RFC3339Nano),
		},
	}
	_, err := pub.Publish(ctx, msg)
	return err
}

func backoff(base time.Duration, failures int) time.Duration {
	d := base
	for i := 0; i < failures && d < maxIdleBackoff; i++ {
		d *= 2
	}
	return min(d, maxIdleBackoff)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
