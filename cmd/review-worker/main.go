package main

import (
	"context"
	"errors"

	"github.com/streetfoodconnect/marketplace-backend/internal/app"
	"github.com/streetfoodconnect/marketplace-backend/internal/consumers/reviews"
	"github.com/streetfoodconnect/marketplace-backend/internal/realtime"
	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox/idempotency"
	"github.com/streetfoodconnect/marketplace-backend/pkg/pubsub"
	"github.com/streetfoodconnect/marketplace-backend/pkg/redis"
)

const serviceName = "review-worker"

func main() {
	app.Main(serviceName, run)
}

// run consumes review_added events and refreshes supplier ratings.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer app.Close(ctx, logg, "db", dbClient)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer app.Close(ctx, logg, "redis", redisClient)

	broker, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer app.Close(ctx, logg, "pubsub", broker)

	subscription := broker.ReviewsSubscription()
	if subscription == nil {
		return errors.New("reviews subscription not configured")
	}

	claims, err := idempotency.NewGuard(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}

	consumer, err := reviews.NewConsumer(reviews.ConsumerParams{
		Ratings:     users.NewRepository(dbClient.DB()),
		Idempotency: claims,
		Realtime:    realtime.NewRedisPublisher(redisClient),
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "review worker ready")
	return consumer.Run(ctx, subscription)
}
