package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/streetfoodconnect/marketplace-backend/internal/realtime"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/metrics"
)

type SupplierRatingJobParams struct {
	Logger     *logger.Logger
	Repository ratingRecomputer
	Realtime   realtime.Publisher
	Metrics    *metrics.CronJobMetrics
}

type ratingRecomputer interface {
	RecomputeAllRatings(ctx context.Context) (int64, error)
}

// NewSupplierRatingJob builds the job that refreshes every supplier rating
// from the mean of their reviews.
func NewSupplierRatingJob(params SupplierRatingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &supplierRatingJob{
		logg:     params.Logger,
		repo:     params.Repository,
		realtime: params.Realtime,
		metrics:  params.Metrics,
		now:      time.Now,
	}, nil
}

type supplierRatingJob struct {
	logg     *logger.Logger
	repo     ratingRecomputer
	realtime realtime.Publisher
	metrics  *metrics.CronJobMetrics
	now      func() time.Time
}

func (j *supplierRatingJob) Name() string { return "supplier-rating" }

func (j *supplierRatingJob) Run(ctx context.Context) error {
	updated, err := j.repo.RecomputeAllRatings(ctx)
	if err != nil {
		return fmt.Errorf("recompute supplier ratings: %w", err)
	}
	j.metrics.AddRows(j.Name(), "users", updated)
	logCtx := j.logg.WithField(ctx, "suppliers_updated", updated)
	j.logg.Info(logCtx, "supplier ratings recomputed")

	if j.realtime == nil || updated == 0 {
		return nil
	}
	event, err := realtime.NewEvent(realtime.EventSupplierRatingUpdated, map[string]any{
		"suppliers_updated": updated,
		"recomputed_at":     j.now().UTC(),
	})
	if err == nil {
		err = j.realtime.Publish(ctx, realtime.TopicSuppliers, event)
	}
	if err != nil {
		j.logg.Warn(j.logg.WithField(logCtx, "error", err.Error()), "supplier rating broadcast failed")
	}
	return nil
}
