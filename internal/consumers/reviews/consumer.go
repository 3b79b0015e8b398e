package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/internal/realtime"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox/payloads"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox/registry"
)

const consumerName = "review-rating"

type ratingRecomputer interface {
	RecomputeRating(ctx context.Context, supplierID uuid.UUID) (float64, error)
}

type eventClaimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// RatingUpdate is broadcast on the suppliers topic after a recompute.
type RatingUpdate struct {
	SupplierID uuid.UUID `json:"supplier_id"`
	Rating     float64   `json:"rating"`
	ReviewID   uuid.UUID `json:"review_id"`
}

type ConsumerParams struct {
	Ratings     ratingRecomputer
	Idempotency eventClaimer
	Realtime    realtime.Publisher
	Logger      *logger.Logger
}

// Consumer refreshes a supplier's rating as soon as a review_added event
// arrives, ahead of the periodic cron recompute.
type Consumer struct {
	ratings  ratingRecomputer
	claims   eventClaimer
	realtime realtime.Publisher
	decoders *registry.DecoderRegistry
	logg     *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Ratings == nil {
		return nil, errors.New("rating recomputer is required")
	}
	if params.Idempotency == nil {
		return nil, errors.New("idempotency guard is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	decoders := registry.NewDecoderRegistry()
	registry.RegisterJSON[payloads.ReviewAddedEvent](decoders, enums.EventReviewAdded, 1)
	return &Consumer{
		ratings:  params.Ratings,
		claims:   params.Idempotency,
		realtime: params.Realtime,
		decoders: decoders,
		logg:     params.Logger,
	}, nil
}

// Run receives from the subscription until ctx is canceled.
func (c *Consumer) Run(ctx context.Context, subscription *gcppubsub.Subscriber) error {
	if subscription == nil {
		return errors.New("reviews subscription is required")
	}
	return subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		logCtx := c.logg.WithField(innerCtx, "message_id", msg.ID)
		if err := c.Process(logCtx, msg.Attributes, msg.Data); err != nil {
			c.logg.Error(logCtx, "review event failed", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Process handles one delivery. Malformed or foreign events are logged and
// dropped; a returned error means the message should be redelivered.
func (c *Consumer) Process(ctx context.Context, attributes map[string]string, data []byte) error {
	eventType := strings.TrimSpace(attributes["event_type"])
	logCtx := c.logg.WithField(ctx, "event_type", eventType)
	if eventType != string(enums.EventReviewAdded) {
		c.logg.Info(logCtx, "event not handled by review consumer")
		return nil
	}

	envelope, eventID, err := outbox.ParseEnvelope(data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "invalid review envelope")
		return nil
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID)

	event, err := registry.DecodeAs[payloads.ReviewAddedEvent](c.decoders, enums.EventReviewAdded, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "undecodable review payload")
		return nil
	}
	if event.SupplierID == uuid.Nil {
		c.logg.Warn(logCtx, "review event without supplier")
		return nil
	}

	claimed, err := c.claims.Claim(logCtx, consumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	rating, err := c.ratings.RecomputeRating(logCtx, event.SupplierID)
	if err != nil {
		_ = c.claims.Release(logCtx, consumerName, eventID)
		return fmt.Errorf("recompute rating for %s: %w", event.SupplierID, err)
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{"supplier_id": event.SupplierID, "rating": rating})
	c.logg.Info(logCtx, "supplier rating refreshed")

	c.broadcast(logCtx, RatingUpdate{SupplierID: event.SupplierID, Rating: rating, ReviewID: event.ReviewID})
	return nil
}

func (c *Consumer) broadcast(ctx context.Context, update RatingUpdate) {
	if c.realtime == nil {
		return
	}
	event, err := realtime.NewEvent(realtime.EventSupplierRatingUpdated, update)
	if err == nil {
		err = c.realtime.Publish(ctx, realtime.TopicSuppliers, event)
	}
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "rating broadcast failed")
	}
}
