package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox/payloads"
)

// Route says where an event type is published and which aggregate owns it.
type Route struct {
	Event     enums.OutboxEventType
	Aggregate enums.OutboxAggregateType
	Topic     string
}

// Resolved is an outbox row that passed validation and decoded cleanly.
type Resolved struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	EventID  uuid.UUID
	Payload  any
}

// PermanentError marks a row that will never publish, however often it is
// retried. The publisher parks such rows in the dead letter table.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error { return PermanentError{Err: err} }

func IsPermanent(err error) bool {
	var p PermanentError
	return errors.As(err, &p)
}

// Catalog is the set of events the publisher knows how to ship.
type Catalog struct {
	routes   map[enums.OutboxEventType]Route
	decoders *DecoderRegistry
}

// NewCatalog routes order events to the orders topic and review events to
// the reviews topic.
func NewCatalog(cfg config.PubSubConfig) (*Catalog, error) {
	if cfg.OrdersTopic == "" || cfg.ReviewsTopic == "" {
		return nil, errors.New("orders and reviews topics are both required")
	}
	c := &Catalog{routes: map[enums.OutboxEventType]Route{}, decoders: NewDecoderRegistry()}

	c.add(Route{enums.EventOrderCreated, enums.AggregateOrder, cfg.OrdersTopic})
	RegisterJSON[payloads.OrderCreatedEvent](c.decoders, enums.EventOrderCreated, 1)

	c.add(Route{enums.EventOrderStatusChanged, enums.AggregateOrder, cfg.OrdersTopic})
	RegisterJSON[payloads.OrderStatusChangedEvent](c.decoders, enums.EventOrderStatusChanged, 1)

	c.add(Route{enums.EventReviewAdded, enums.AggregateReview, cfg.ReviewsTopic})
	RegisterJSON[payloads.ReviewAddedEvent](c.decoders, enums.EventReviewAdded, 1)
	return c, nil
}

func (c *Catalog) add(r Route) { c.routes[r.Event] = r }

// Topics lists the distinct topics in sorted order.
func (c *Catalog) Topics() []string {
	var topics []string
	for _, r := range c.routes {
		if !slices.Contains(topics, r.Topic) {
			topics = append(topics, r.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks the row against its route and decodes the payload. Every
// failure is permanent because the row content never changes.
func (c *Catalog) Resolve(row models.OutboxEvent) (*Resolved, error) {
	route, ok := c.routes[row.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("no route for event type %q", row.EventType))
	case route.Aggregate != row.AggregateType:
		return nil, Permanent(fmt.Errorf("%s belongs to %s aggregates, row says %s", row.EventType, route.Aggregate, row.AggregateType))
	case row.AggregateID == uuid.Nil:
		return nil, Permanent(errors.New("row has no aggregate id"))
	}

	env, eventID, err := outbox.ParseEnvelope(row.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	payload, err := c.decoders.Decode(row.EventType, env.Version, env.Data)
	if err != nil {
		return nil, Permanent(err)
	}
	return &Resolved{Route: route, Envelope: env, EventID: eventID, Payload: payload}, nil
}
