package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/internal/session"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
)

// RelayChannel is the Redis pub/sub channel every API instance listens on.
const RelayChannel = "sfc:realtime"

const (
	TopicSuppliers = "suppliers"

	ordersTopicPrefix    = "orders:"
	inventoryTopicPrefix = "inventory:"
	sessionTopicPrefix   = "session:"

	maxTopicsPerClient = 16
)

const (
	EventAuthChanged           = "auth_changed"
	EventOrderCreated          = "order_created"
	EventOrderStatusChanged    = "order_status_changed"
	EventInventoryChanged      = "inventory_changed"
	EventReviewAdded           = "review_added"
	EventSupplierRatingUpdated = "supplier_rating_updated"
)

// Event is the JSON frame written to subscribers.
type Event struct {
	Topic      string          `json:"topic"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent encodes data into an event ready to publish.
func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return Event{Type: eventType, Data: raw, OccurredAt: time.Now().UTC()}, nil
}

func OrdersTopic(userID uuid.UUID) string        { return ordersTopicPrefix + userID.String() }
func InventoryTopic(supplierID uuid.UUID) string { return inventoryTopicPrefix + supplierID.String() }
func SessionTopic(userID uuid.UUID) string       { return sessionTopicPrefix + userID.String() }

// ParseTopics splits a comma separated topic list, dropping blanks and duplicates.
func ParseTopics(raw string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		topic := strings.TrimSpace(part)
		if topic == "" {
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		out = append(out, topic)
	}
	return out
}

// Authorize checks whether the session may subscribe to every topic.
func Authorize(s session.Session, topics []string) error {
	if !s.IsAuthenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if len(topics) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one topic is required")
	}
	if len(topics) > maxTopicsPerClient {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d topics per connection", maxTopicsPerClient))
	}
	for _, topic := range topics {
		if err := authorizeTopic(s, topic); err != nil {
			return err
		}
	}
	return nil
}

func authorizeTopic(s session.Session, topic string) error {
	switch {
	case topic == TopicSuppliers:
		return nil
	case strings.HasPrefix(topic, inventoryTopicPrefix):
		if _, err := uuid.Parse(strings.TrimPrefix(topic, inventoryTopicPrefix)); err != nil {
			return invalidTopic(topic)
		}
		return nil
	case strings.HasPrefix(topic, ordersTopicPrefix):
		id, err := uuid.Parse(strings.TrimPrefix(topic, ordersTopicPrefix))
		if err != nil {
			return invalidTopic(topic)
		}
		if id != s.UserID() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cannot subscribe to another user's orders").
				WithDetails(map[string]any{"topic": topic})
		}
		return nil
	default:
		return invalidTopic(topic)
	}
}

func invalidTopic(topic string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "unknown topic").WithDetails(map[string]any{"topic": topic})
}
