package main

import (
	"context"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox/registry"
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeParked
)

const (
	reasonPermanent   = "non_retryable"
	reasonMaxAttempts = "max_attempts"
)

// tally counts outcomes for the per-batch log line.
type tally [3]int

func (t tally) fields() map[string]any {
	return map[string]any{"published": t[outcomePublished], "retry": t[outcomeRetry], "parked": t[outcomeParked]}
}

// delivery is one claimed row on its way out.
type delivery struct {
	row    models.OutboxEvent
	fields map[string]any
	result publishResult
}

// processBatch claims rows and hands every message to Pub/Sub before waiting
// on any result, so the client batches the sends. Outcomes are recorded in
// the claiming transaction; only bookkeeping failures abort it.
func (s *Service) processBatch(ctx context.Context) (found bool, err error) {
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.Claim(tx, s.batchSize, s.maxAttempts)
		if err != nil || len(rows) == 0 {
			return err
		}
		found = true

		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		var counts tally
		started := make([]delivery, 0, len(rows))
		for _, row := range rows {
			d, err := s.start(pubCtx, row)
			if err == nil {
				started = append(started, d)
				continue
			}
			if err := s.park(ctx, tx, d, reasonPermanent, err); err != nil {
				return err
			}
			counts[outcomeParked]++
		}
		for _, d := range started {
			_, pubErr := d.result.Get(pubCtx)
			o, err := s.record(ctx, tx, d, pubErr)
			if err != nil {
				return err
			}
			counts[o]++
		}
		s.logg.Info(s.logg.WithFields(ctx, counts.fields()), "outbox batch settled")
		return nil
	})
	return found, err
}

// start resolves the row and begins its publish. Any error it returns is
// permanent.
func (s *Service) start(ctx context.Context, row models.OutboxEvent) (delivery, error) {
	d := delivery{row: row, fields: logFields(row, "", "")}
	resolved, err := s.registry.Resolve(row)
	if err != nil {
		return d, err
	}
	topic := resolved.Descriptor.Topic
	d.fields = logFields(row, resolved.Envelope.EventID, topic)

	pub := s.topics(topic)
	if pub == nil {
		return d, registry.Permanent(fmt.Errorf("no publisher for topic %s", topic))
	}
	if d.result = pub.Publish(ctx, message(row, resolved.Envelope)); d.result == nil {
		return d, registry.Permanent(fmt.Errorf("publisher for topic %s returned no result", topic))
	}
	return d, nil
}

// message carries the stored envelope untouched; attributes let subscribers
// filter without decoding it.
func message(row models.OutboxEvent, env outbox.PayloadEnvelope) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if env.Actor != nil && env.Actor.Role != "" {
		attrs["actor_role"] = env.Actor.Role
	}
	return &gcppubsub.Message{Data: row.Payload, Attributes: attrs}
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, d delivery, pubErr error) (outcome, error) {
	switch {
	case pubErr == nil:
		if err := s.repo.MarkPublished(tx, d.row.ID, s.now()); err != nil {
			return outcomePublished, fmt.Errorf("mark %s published: %w", d.row.ID, err)
		}
		return outcomePublished, nil
	case registry.IsPermanent(pubErr):
		return outcomeParked, s.park(ctx, tx, d, reasonPermanent, pubErr)
	}

	attempt := d.row.AttemptCount + 1
	d.fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		return outcomeParked, s.park(ctx, tx, d, reasonMaxAttempts, fmt.Errorf("gave up after %d attempts: %w", attempt, pubErr))
	}

	s.logg.Warn(s.logg.WithFields(ctx, withError(d.fields, pubErr)), "outbox publish failed, will retry")
	if err := s.repo.RecordAttempt(tx, d.row.ID, pubErr); err != nil {
		return outcomeRetry, fmt.Errorf("record attempt on %s: %w", d.row.ID, err)
	}
	return outcomeRetry, nil
}

// park stops retrying a row. The reason stays in last_error; the business
// write that queued the row is unaffected.
func (s *Service) park(ctx context.Context, tx *gorm.DB, d delivery, reason string, cause error) error {
	d.fields["terminal_reason"] = reason
	s.logg.Warn(s.logg.WithFields(ctx, withError(d.fields, cause)), "outbox event parked")

	if s.failures != nil {
		s.failures.IncNotificationFailure(string(d.row.EventType))
	}
	if err := s.repo.Park(tx, d.row.ID, fmt.Errorf("%s: %w", reason, cause), s.maxAttempts); err != nil {
		return fmt.Errorf("park %s: %w", d.row.ID, err)
	}
	return nil
}

func logFields(row models.OutboxEvent, eventID, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if eventID != "" {
		fields["event_id"] = eventID
	}
	if topic != "" {
		fields["topic"] = topic
	}
	return fields
}

func withError(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
