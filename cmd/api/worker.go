package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/referral-api/internal/config"
	"github.com/jwalitptl/referral-api/internal/handler/health"
	promHandler "github.com/jwalitptl/referral-api/internal/handler/prometheus"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/repository/postgres"
	"github.com/jwalitptl/referral-api/internal/router"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/messaging/redis"
	"github.com/jwalitptl/referral-api/pkg/metrics"
	"github.com/jwalitptl/referral-api/pkg/worker"
)

const outboxChannel = "referral"

func workerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the outbox publisher and retention cleanup without the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(*configPath)
		},
	}
}

func runWorker(configPath string) error {
	cfg, log, err := bootstrap(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	reg, m := newMetrics()

	checks := map[string]health.Pinger{"database": db}
	stopWorkers, err := startWorkers(ctx, cfg, log, m, postgres.NewOutboxRepository(base), postgres.NewAuditRepository(base), checks)
	if err != nil {
		return err
	}
	defer stopWorkers()

	// health and metrics only
	r := router.NewRouter(router.RouterConfig{Mode: gin.ReleaseMode},
		health.NewHandler(checks),
		promHandler.New(reg),
	)
	r.Setup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return serveUntilDone(ctx, srv, log)
}

// startWorkers launches the outbox processor, when a broker is configured, and the
// retention cleanups. The broker joins checks so readiness reflects it. The returned
// func stops the workers, waits for them to return and then closes the broker; call it
// before closing the database.
func startWorkers(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
	m *metrics.Metrics,
	outboxRepo repository.OutboxRepository,
	auditRepo repository.AuditRepository,
	checks map[string]health.Pinger,
) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	var g errgroup.Group
	closeBroker := func() {}

	if cfg.Outbox.Enabled && cfg.Redis.URL != "" {
		broker, err := redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, log)
		if err != nil {
			cancel()
			log.Error(err, "failed to connect to redis")
			return nil, err
		}
		closeBroker = func() { _ = broker.Close() }
		checks["broker"] = broker

		processor, err := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
			MaxRetries:    cfg.Outbox.MaxRetries,
			ChannelPrefix: outboxChannel,
		}, log, m)
		if err != nil {
			cancel()
			closeBroker()
			log.Error(err, "failed to create outbox processor")
			return nil, err
		}
		g.Go(func() error {
			processor.Start(ctx)
			return nil
		})
	} else {
		log.Warn("Outbox publishing disabled", "redis_configured", cfg.Redis.URL != "")
	}

	interval := cfg.Worker.CleanupInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if cfg.Audit.RetentionDays > 0 {
		w := worker.NewCleanupWorker("audit", auditRepo.DeleteBefore,
			time.Duration(cfg.Audit.RetentionDays)*24*time.Hour, interval, log)
		g.Go(func() error {
			w.Start(ctx)
			return nil
		})
	}
	if cfg.Outbox.RetentionDays > 0 {
		w := worker.NewCleanupWorker("outbox", outboxRepo.DeleteProcessedBefore,
			time.Duration(cfg.Outbox.RetentionDays)*24*time.Hour, interval, log)
		g.Go(func() error {
			w.Start(ctx)
			return nil
		})
	}

	return func() {
		cancel()
		_ = g.Wait()
		closeBroker()
		log.Info("Workers stopped")
	}, nil
}

const shutdownTimeout = 10 * time.Second

// serveUntilDone runs srv until ctx is cancelled, then shuts it down gracefully.
func serveUntilDone(ctx context.Context, srv *http.Server, log *logger.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Error(err, "server failed")
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
		return err
	}

	log.Info("Server exited")
	return nil
}
