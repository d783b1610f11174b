package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/config"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	maxBackoff     = 10 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

type (
	dbClient interface {
		Ping(context.Context) error
		WithTx(context.Context, func(tx *gorm.DB) error) error
	}

	pubSubClient interface {
		Ping(context.Context) error
		Publisher(name string) *gcppubsub.Publisher
	}

	outboxRepository interface {
		Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
		MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
		RecordAttempt(tx *gorm.DB, id uuid.UUID, cause error) error
		Park(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error
	}

	registryResolver interface {
		Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
	}

	// failureRecorder counts notifications that were given up on.
	failureRecorder interface {
		IncNotificationFailure(event string)
	}
)

// settings are the outbox knobs after defaults are applied.
type settings struct {
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func settingsFrom(cfg config.OutboxConfig) settings {
	return settings{
		batchSize:    positiveOr(cfg.BatchSize, 50),
		maxAttempts:  positiveOr(cfg.MaxAttempts, 10),
		pollInterval: time.Duration(positiveOr(cfg.PollIntervalMS, 500)) * time.Millisecond,
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pubSubClient
	Repository outboxRepository
	Registry   registryResolver
	Metrics    failureRecorder
	// Topics overrides how a topic name becomes a publisher; tests use it.
	Topics func(topic string) publisher
}

// Service drains queued club notifications to the notification topic.
type Service struct {
	settings

	logg     *logger.Logger
	db       dbClient
	pubsub   pubSubClient
	repo     outboxRepository
	registry registryResolver
	failures failureRecorder
	topics   func(topic string) publisher
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	for _, dep := range []struct {
		name    string
		missing bool
	}{
		{"config", params.Config == nil},
		{"logger", params.Logger == nil},
		{"database client", params.DB == nil},
		{"pubsub client", params.PubSub == nil},
		{"outbox repository", params.Repository == nil},
		{"event registry", params.Registry == nil},
	} {
		if dep.missing {
			return nil, fmt.Errorf("outbox publisher: %s is required", dep.name)
		}
	}

	topics := params.Topics
	if topics == nil {
		topics = func(topic string) publisher { return gcpTopic(params.PubSub.Publisher(topic)) }
	}
	return &Service{
		settings: settingsFrom(params.Config.Outbox),
		logg:     params.Logger,
		db:       params.DB,
		pubsub:   params.PubSub,
		repo:     params.Repository,
		registry: params.Registry,
		failures: params.Metrics,
		topics:   topics,
		now:      time.Now,
	}, nil
}

// checkDependencies pings the database first, then Pub/Sub.
func (s *Service) checkDependencies(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", dep.name), "dependency ping failed", err)
			return fmt.Errorf("%s unreachable: %w", dep.name, err)
		}
	}
	return nil
}

// Run polls until ctx is cancelled. A batch that found rows is followed
// immediately by the next one; an empty batch waits one poll interval; a
// failed batch backs off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	backoff := s.pollInterval
	for {
		found, err := s.processBatch(ctx)
		wait := time.Duration(0)
		switch {
		case errors.Is(err, context.Canceled):
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			wait = withJitter(backoff)
		case found:
			backoff = s.pollInterval
		default:
			backoff = s.pollInterval
			wait = withJitter(s.pollInterval)
		}
		if sleep(ctx, wait) != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return ctx.Err()
		}
	}
}

// sleep waits d or until ctx ends. With d <= 0 it only reports ctx state.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
