package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/clubledger-backend/api/controllers"
	"github.com/angelmondragon/clubledger-backend/api/routes"
	"github.com/angelmondragon/clubledger-backend/internal/enrollments"
	"github.com/angelmondragon/clubledger-backend/internal/inventory"
	"github.com/angelmondragon/clubledger-backend/internal/notifications"
	"github.com/angelmondragon/clubledger-backend/internal/payments"
	"github.com/angelmondragon/clubledger-backend/internal/plans"
	"github.com/angelmondragon/clubledger-backend/internal/sales"
	"github.com/angelmondragon/clubledger-backend/internal/users"
	"github.com/angelmondragon/clubledger-backend/pkg/config"
	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/instance"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/metrics"
	"github.com/angelmondragon/clubledger-backend/pkg/migrate"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox"
	"github.com/angelmondragon/clubledger-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.Connect(bootCtx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(bootCtx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	} else {
		logg.Warn(bootCtx, "redis not configured; rate limiting and distributed locks disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewEngineMetrics(reg)

	deps, err := buildDeps(cfg, logg, dbClient, redisClient, m)
	if err != nil {
		return err
	}
	deps.Metrics = reg

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(bootCtx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case serveErr := <-errCh:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	case <-sigCtx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildDeps wires repositories and services. redisClient may be nil.
func buildDeps(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, m *metrics.EngineMetrics) (routes.Deps, error) {
	conn := dbClient.DB()

	notifier, err := notifications.NewOutboxNotifier(dbClient, outbox.NewService(outbox.NewRepository(conn), logg), logg, m)
	if err != nil {
		return routes.Deps{}, err
	}
	directory, err := users.NewDirectory(users.NewRepository(conn), cfg.Engine.LookupTimeout)
	if err != nil {
		return routes.Deps{}, err
	}

	planSvc, err := plans.NewService(dbClient, plans.NewRepository(conn), cfg.Engine.LookupTimeout)
	if err != nil {
		return routes.Deps{}, err
	}
	enrollmentRepo := enrollments.NewRepository(conn)
	enrollmentSvc, err := enrollments.NewService(enrollments.Deps{
		DB:            dbClient,
		Repo:          enrollmentRepo,
		Plans:         planSvc,
		Directory:     directory,
		Notifier:      notifier,
		Logger:        logg,
		CodeAttempts:  cfg.Engine.StudentCodeAttempts,
		LookupTimeout: cfg.Engine.LookupTimeout,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	paymentSvc, err := payments.NewService(payments.Deps{
		DB:            dbClient,
		Repo:          payments.NewRepository(conn),
		Enrollments:   enrollmentRepo,
		Plans:         planSvc,
		Notifier:      notifier,
		Logger:        logg,
		LookupTimeout: cfg.Engine.LookupTimeout,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	invRepo := inventory.NewRepository(conn)
	catalog, err := inventory.NewCatalog(dbClient, invRepo, m)
	if err != nil {
		return routes.Deps{}, err
	}
	locker, err := productLocker(cfg, logg, redisClient, m)
	if err != nil {
		return routes.Deps{}, err
	}
	ledger, err := inventory.NewLedger(inventory.LedgerDeps{
		DB:             dbClient,
		Repo:           invRepo,
		Locker:         locker,
		Notifier:       notifier,
		Metrics:        m,
		Logger:         logg,
		VersionRetries: cfg.Engine.VersionRetries,
		LookupTimeout:  cfg.Engine.LookupTimeout,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	var sequence sales.Sequence = sales.NewTableSequence()
	if redisClient != nil {
		sequence = sales.NewCounterSequence(redisClient)
	}
	saleSvc, err := sales.NewService(sales.Deps{
		Repo:          sales.NewRepository(conn),
		Products:      invRepo,
		Ledger:        ledger,
		Directory:     directory,
		Sequence:      sequence,
		Notifier:      notifier,
		Metrics:       m,
		Logger:        logg,
		CodeAttempts:  cfg.Engine.SaleCodeAttempts,
		LookupTimeout: cfg.Engine.LookupTimeout,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	deps := routes.Deps{
		Health:      map[string]controllers.Pinger{"db": dbClient},
		Plans:       planSvc,
		Enrollments: enrollmentSvc,
		Payments:    paymentSvc,
		Catalog:     catalog,
		Ledger:      ledger,
		Sales:       saleSvc,
	}
	// A typed nil client must not leak into the interfaces below.
	if redisClient != nil {
		deps.Health["redis"] = redisClient
		deps.Limiter = redisClient
	}
	return deps, nil
}

func productLocker(cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, m *metrics.EngineMetrics) (inventory.Locker, error) {
	if cfg.FeatureFlags.DistributedLocks && redisClient != nil {
		return inventory.NewRedisLocker(redisClient, instance.GetID(), cfg.Engine.LockTTL, cfg.Engine.LockWait, m)
	}
	if cfg.FeatureFlags.DistributedLocks {
		logg.Warn(context.Background(), "distributed locks requested without redis; using in-process locks")
	}
	return inventory.NewLocalLocker(cfg.Engine.LockWait, m), nil
}
