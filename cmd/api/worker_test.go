package main

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/config"
	"github.com/jwalitptl/referral-api/internal/handler/health"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/metrics"
)

// slowAudit holds a cleanup open until its context is cancelled, then takes a moment
// to finish, like a delete still running when shutdown starts.
type slowAudit struct {
	repository.AuditRepository
	started  chan struct{}
	once     sync.Once
	finished atomic.Bool
}

func (a *slowAudit) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	a.once.Do(func() { close(a.started) })
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)
	a.finished.Store(true)
	return 0, ctx.Err()
}

func TestStartWorkers_StopWaitsForCleanup(t *testing.T) {
	store := memory.NewStore()
	audit := &slowAudit{AuditRepository: store.Audit(), started: make(chan struct{})}

	cfg := &config.Config{}
	cfg.Audit.RetentionDays = 1
	cfg.Worker.CleanupInterval = time.Millisecond

	checks := map[string]health.Pinger{}
	stop, err := startWorkers(context.Background(), cfg, logger.Nop(),
		metrics.NewMetrics("test", prometheus.NewRegistry()), store.Outbox(), audit, checks)
	require.NoError(t, err)

	select {
	case <-audit.started:
	case <-time.After(2 * time.Second):
		t.Fatal("audit cleanup never ran")
	}

	stop()
	assert.True(t, audit.finished.Load())
	assert.NotContains(t, checks, "broker")
}

func TestStartWorkers_StopsWithParentContext(t *testing.T) {
	store := memory.NewStore()
	cfg := &config.Config{}
	cfg.Outbox.RetentionDays = 1
	cfg.Worker.CleanupInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	stop, err := startWorkers(ctx, cfg, logger.Nop(),
		metrics.NewMetrics("test", prometheus.NewRegistry()), store.Outbox(), store.Audit(), map[string]health.Pinger{})
	require.NoError(t, err)

	cancel()
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}
}
