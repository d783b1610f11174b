package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/pkg/config"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox/payloads"
)

// ErrPermanent marks failures that no amount of republishing will fix.
var ErrPermanent = errors.New("permanent outbox failure")

// Permanent tags err so IsPermanent reports true for it.
func Permanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// Route says where an event type is published and what aggregate owns it.
type Route struct {
	Event     enums.OutboxEventType
	Aggregate enums.OutboxAggregateType
	Topic     string

	decode func(json.RawMessage) (any, error)
}

// ResolvedEvent is an outbox row whose envelope and payload decoded cleanly.
type ResolvedEvent struct {
	Descriptor Route
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]Route
}

func route[T any](event enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) Route {
	return Route{
		Event:     event,
		Aggregate: aggregate,
		Topic:     topic,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// NewEventRegistry routes every notification event to the notification topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := cfg.NotificationTopic
	if topic == "" {
		return nil, errors.New("notification topic is required")
	}

	routes := []Route{
		route[payloads.EnrollmentApprovedEvent](enums.EventEnrollmentApproved, enums.AggregateEnrollment, topic),
		route[payloads.ProofReviewedEvent](enums.EventProofReviewed, enums.AggregatePaymentProof, topic),
		route[payloads.SaleCancelledEvent](enums.EventSaleCancelled, enums.AggregateSale, topic),
		route[payloads.StockLowEvent](enums.EventStockLow, enums.AggregateProduct, topic),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]Route, len(routes))}
	for _, r := range routes {
		reg.entries[r.Event] = r
	}
	return reg, nil
}

// Resolve checks the row against its route and decodes the typed payload.
// Every error it returns is permanent.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	rt, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("unsupported event type %s", event.EventType))
	case rt.Aggregate != event.AggregateType:
		return nil, Permanent(fmt.Errorf("%s belongs to %s, row says %s", event.EventType, rt.Aggregate, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, err := rt.decode(envelope.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: rt, Envelope: envelope, Payload: payload}, nil
}
