// Package notifications records fire-and-forget notifications for the
// delivery collaborator. Events land in the outbox after the domain write
// commits; cmd/outbox-publisher forwards them to Pub/Sub.
package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/metrics"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox"
)

// Notification is one event for the delivery collaborator.
type Notification struct {
	Event       enums.OutboxEventType
	Aggregate   enums.OutboxAggregateType
	AggregateID uuid.UUID
	Actor       auth.Actor
	Data        any
}

// Notifier dispatches notifications. Implementations never fail the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type outboxNotifier struct {
	db      txRunner
	outbox  emitter
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
}

// NewOutboxNotifier records notifications as outbox events in their own transaction.
func NewOutboxNotifier(db txRunner, emitter emitter, logg *logger.Logger, m *metrics.EngineMetrics) (Notifier, error) {
	if db == nil {
		return nil, fmt.Errorf("db client required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &outboxNotifier{db: db, outbox: emitter, logg: logg, metrics: m}, nil
}

func (n *outboxNotifier) Notify(ctx context.Context, note Notification) {
	event := outbox.DomainEvent{
		EventType:     note.Event,
		AggregateType: note.Aggregate,
		AggregateID:   note.AggregateID,
		Data:          note.Data,
		Version:       1,
	}
	if note.Actor.ID != "" {
		event.Actor = &outbox.ActorRef{NationalID: note.Actor.ID, Role: note.Actor.Role.String()}
	}

	err := n.db.WithTx(ctx, func(tx *gorm.DB) error {
		return n.outbox.Emit(ctx, tx, event)
	})
	if err == nil {
		return
	}

	n.metrics.IncNotificationFailure(string(note.Event))
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"event_type":     note.Event,
		"aggregate_type": note.Aggregate,
		"aggregate_id":   note.AggregateID.String(),
	})
	n.logg.Error(logCtx, "notification dispatch failed", err)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}
