package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/streetfoodconnect/marketplace-backend/internal/app"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/metrics"
	"github.com/streetfoodconnect/marketplace-backend/pkg/migrate"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox/registry"
	"github.com/streetfoodconnect/marketplace-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	app.Main(serviceName, run)
}

// run wires dependencies and blocks until ctx ends or a component fails.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer app.Close(ctx, logg, "db", dbClient)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	broker, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer app.Close(ctx, logg, "pubsub", broker)

	catalog, err := registry.NewCatalog(cfg.PubSub)
	if err != nil {
		return err
	}

	relay, err := NewRelay(RelayParams{
		Config:  cfg.Outbox,
		Logger:  logg,
		Metrics: metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		DB:      dbClient,
		Broker:  broker,
		Events:  outbox.NewRepository(dbClient.DB()),
		DLQ:     outbox.NewDLQRepository(),
		Catalog: catalog,
		Topics: newTopicSet(func(topic string) topicPublisher {
			return newOrderedPublisher(broker.Publisher(topic))
		}),
	})
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "topics", catalog.Topics())
	logg.Info(ctx, "outbox publisher starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, logg) })
	g.Go(func() error { return relay.Run(gctx) })

	return g.Wait()
}

