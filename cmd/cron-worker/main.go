package main

import (
	"context"
	"flag"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/streetfoodconnect/marketplace-backend/internal/app"
	"github.com/streetfoodconnect/marketplace-backend/internal/cron"
	"github.com/streetfoodconnect/marketplace-backend/internal/realtime"
	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/metrics"
	"github.com/streetfoodconnect/marketplace-backend/pkg/migrate"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox"
	"github.com/streetfoodconnect/marketplace-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	app.Main(serviceName, func(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
		return run(ctx, cfg, logg, *once)
	})
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer app.Close(ctx, logg, "db", dbClient)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer app.Close(ctx, logg, "redis", redisClient)

	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	jobs, err := buildRegistry(cfg, logg, dbClient, redisClient, jobMetrics)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, serviceName+":"+cmpEnv(cfg.App.Env), lockTTL(cfg.Cron.Interval))
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "jobs", jobs.Names())
	if once {
		return service.RunOnce(ctx)
	}

	logg.Info(ctx, "cron worker starting")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, logg) })
	g.Go(func() error { return service.Run(gctx) })
	return g.Wait()
}

// lockTTL leaves a minute of slack before the next tick so a crashed holder
// never blocks the following cycle.
func lockTTL(interval time.Duration) time.Duration {
	if interval > 2*time.Minute {
		return interval - time.Minute
	}
	return interval
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, jobMetrics *metrics.CronJobMetrics) (*cron.Registry, error) {
	jobs := cron.NewRegistry()

	rating, err := cron.NewSupplierRatingJob(cron.SupplierRatingJobParams{
		Logger:     logg,
		Repository: users.NewRepository(dbClient.DB()),
		Realtime:   realtime.NewRedisPublisher(redisClient),
		Metrics:    jobMetrics,
	})
	if err != nil {
		return nil, err
	}
	if err := jobs.RegisterIf(cfg.Cron.RatingJobEnabled, rating); err != nil {
		return nil, err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Outbox:           outbox.NewRepository(dbClient.DB()),
		DLQ:              outbox.NewDLQRepository(),
		Metrics:          jobMetrics,
		RetentionDays:    cfg.Outbox.RetentionDays,
		DLQRetentionDays: cfg.Outbox.DLQRetentionDays,
		AbandonAttempts:  cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	if err := jobs.RegisterIf(cfg.Cron.RetentionJobEnabled, retention); err != nil {
		return nil, err
	}
	return jobs, nil
}

func cmpEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
