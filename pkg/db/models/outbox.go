package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

// OutboxEvent rows are inserted in the same transaction as the state change
// they announce; the relay flips PublishedAt once the broker acks.
type OutboxEvent struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID       `gorm:"type:uuid"`
	Payload       json.RawMessage `gorm:"type:jsonb"`
	AttemptCount  int
	LastError     *string
	PublishedAt   *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

func (e OutboxEvent) Published() bool { return e.PublishedAt != nil }

// DeadLetter snapshots the row for outbox_dlq.
func (e OutboxEvent) DeadLetter(reason enums.OutboxDLQErrorReason, cause string, at time.Time) OutboxDLQ {
	return OutboxDLQ{
		EventID:       e.ID,
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       e.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &cause,
		AttemptCount:  e.AttemptCount,
		FailedAt:      at,
	}
}

type OutboxDLQ struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID       uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_outbox_dlq_event"`
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID                  `gorm:"type:uuid"`
	Payload       json.RawMessage            `gorm:"column:payload_json;type:jsonb"`
	ErrorReason   enums.OutboxDLQErrorReason
	ErrorMessage  *string
	AttemptCount  int
	FailedAt      time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }
