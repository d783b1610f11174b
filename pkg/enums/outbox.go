package enums

import "slices"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateEnrollment   OutboxAggregateType = "enrollment"
	AggregatePaymentProof OutboxAggregateType = "payment_proof"
	AggregateSale         OutboxAggregateType = "sale"
	AggregateProduct      OutboxAggregateType = "product"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateEnrollment,
	AggregatePaymentProof,
	AggregateSale,
	AggregateProduct,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, "aggregate type", value)
}

// OutboxEventType names a notification event.
type OutboxEventType string

const (
	EventEnrollmentApproved OutboxEventType = "enrollment_approved"
	EventProofReviewed      OutboxEventType = "proof_reviewed"
	EventSaleCancelled      OutboxEventType = "sale_cancelled"
	EventStockLow           OutboxEventType = "stock_low"
)

var validOutboxEventTypes = []OutboxEventType{
	EventEnrollmentApproved,
	EventProofReviewed,
	EventSaleCancelled,
	EventStockLow,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validOutboxEventTypes, "event type", value)
}
