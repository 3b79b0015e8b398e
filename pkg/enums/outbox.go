package enums

// OutboxAggregateType is the aggregate_type_enum column of outbox rows.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregateReview OutboxAggregateType = "review"
)

var aggregateTypes = newValueSet("aggregate type", AggregateOrder, AggregateReview)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.contains(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType is the event_type_enum column and the Pub/Sub event_type
// attribute.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventReviewAdded        OutboxEventType = "review_added"
)

var eventTypes = newValueSet("event type", EventOrderCreated, EventOrderStatusChanged, EventReviewAdded)

func (e OutboxEventType) IsValid() bool { return eventTypes.contains(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) { return eventTypes.parse(value) }

// OutboxDLQErrorReason records why the publisher parked a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = newValueSet("dlq reason", OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable)

func (r OutboxDLQErrorReason) String() string { return string(r) }
func (r OutboxDLQErrorReason) IsValid() bool  { return dlqReasons.contains(r) }
