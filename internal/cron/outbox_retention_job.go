package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/metrics"
)

const (
	outboxRetentionJobName = "outbox-retention"

	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
	defaultAbandonAttempts = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPurger interface {
	PurgeBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type dlqPurger interface {
	PurgeBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Outbox  outboxPurger
	DLQ     dlqPurger
	Metrics *metrics.CronJobMetrics
	// RetentionDays applies to published and abandoned outbox rows.
	RetentionDays int
	// DLQRetentionDays applies to dead letters. DLQ purging is skipped when
	// DLQ is nil.
	DLQRetentionDays int
	// AbandonAttempts marks an unpublished row as abandoned once its attempt
	// count reaches this value.
	AbandonAttempts int
}

// NewOutboxRetentionJob builds the job that trims the order and review event
// outbox plus its dead-letter table.
func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("outbox retention: logger required")
	case p.DB == nil:
		return nil, errors.New("outbox retention: db required")
	case p.Outbox == nil:
		return nil, errors.New("outbox retention: outbox repository required")
	}
	j := &outboxRetentionJob{
		logg:     p.Logger,
		db:       p.DB,
		outbox:   p.Outbox,
		dlq:      p.DLQ,
		metrics:  p.Metrics,
		keep:     days(p.RetentionDays, defaultOutboxRetention),
		keepDLQ:  days(p.DLQRetentionDays, defaultDLQRetention),
		abandonN: p.AbandonAttempts,
		now:      time.Now,
	}
	if j.abandonN <= 0 {
		j.abandonN = defaultAbandonAttempts
	}
	return j, nil
}

func days(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * 24 * time.Hour
}

type outboxRetentionJob struct {
	logg     *logger.Logger
	db       txRunner
	outbox   outboxPurger
	dlq      dlqPurger
	metrics  *metrics.CronJobMetrics
	keep     time.Duration
	keepDLQ  time.Duration
	abandonN int
	now      func() time.Time
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

// Run deletes both tables in one transaction so a partial purge never commits.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.keep)
	dlqCutoff := now.Add(-j.keepDLQ)

	var events, dead int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.outbox.PurgeBefore(ctx, tx, cutoff, j.abandonN)
		if err != nil {
			return fmt.Errorf("purge outbox_events: %w", err)
		}
		events = n
		if j.dlq == nil {
			return nil
		}
		n, err = j.dlq.PurgeBefore(ctx, tx, dlqCutoff)
		if err != nil {
			return fmt.Errorf("purge outbox_dlq: %w", err)
		}
		dead = n
		return nil
	})
	if err != nil {
		return err
	}

	j.metrics.AddRows(outboxRetentionJobName, "outbox_events", events)
	j.metrics.AddRows(outboxRetentionJobName, "outbox_dlq", dead)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"outbox_cutoff":  cutoff,
		"dlq_cutoff":     dlqCutoff,
		"events_deleted": events,
		"dlq_deleted":    dead,
	}), "outbox retention purge complete")
	return nil
}
