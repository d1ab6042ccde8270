package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/internal/service/event"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/messaging"
	"github.com/jwalitptl/referral-api/pkg/metrics"
)

type fakeBroker struct {
	mu        sync.Mutex
	failures  int
	published map[string][]messaging.Message
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return errors.New("broker down")
	}
	var msg messaging.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		return err
	}
	if b.published == nil {
		b.published = map[string][]messaging.Message{}
	}
	b.published[channel] = append(b.published[channel], msg)
	return nil
}

func (b *fakeBroker) PingContext(ctx context.Context) error { return nil }
func (b *fakeBroker) Close() error                          { return nil }

func newProcessor(t *testing.T, store *memory.Store, broker messaging.Broker, m *metrics.Metrics) *OutboxProcessor {
	t.Helper()
	p, err := NewOutboxProcessor(store.Outbox(), broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		MaxRetries:    2,
		ChannelPrefix: "referral",
	}, logger.Nop(), m)
	require.NoError(t, err)
	return p
}

func TestProcessBatch_Publishes(t *testing.T) {
	store := memory.NewStore()
	emitter := event.NewEventService(store.Outbox())
	ctx := context.Background()
	require.NoError(t, emitter.Emit(ctx, model.EventReadingCreated, map[string]string{"readingId": "r1"}))
	require.NoError(t, emitter.Emit(ctx, model.EventReferralCreated, map[string]int{"referralId": 3}))

	broker := &fakeBroker{}
	m := metrics.Nop()
	p := newProcessor(t, store, broker, m)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs := broker.published["referral.reading.created"]
	require.Len(t, msgs, 1)
	assert.Equal(t, model.EventReadingCreated, msgs[0].Type)
	assert.JSONEq(t, `{"readingId":"r1"}`, string(msgs[0].Payload))
	assert.Len(t, broker.published["referral.referral.created"], 1)

	for _, e := range store.OutboxEvents() {
		assert.Equal(t, model.OutboxStatusProcessed, e.Status)
		assert.NotNil(t, e.ProcessedAt)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxEventsProcessed))

	// nothing left to claim
	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatch_RetriesThenFails(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, event.NewEventService(store.Outbox()).Emit(ctx, model.EventReadingCritical, map[string]string{}))

	// two attempts per poll, two polls allowed
	broker := &fakeBroker{failures: 4}
	m := metrics.Nop()
	p := newProcessor(t, store, broker, m)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Contains(t, *events[0].ErrorMessage, "broker down")

	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	events = store.OutboxEvents()
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	assert.Equal(t, 2, events[0].RetryCount)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxEventsFailed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventReadingCritical)))

	// FAILED events are not claimed again
	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, broker.published)
}

func TestNewOutboxProcessor_RejectsBadConfig(t *testing.T) {
	_, err := NewOutboxProcessor(nil, &fakeBroker{}, OutboxProcessorConfig{}, logger.Nop(), metrics.Nop())
	assert.Error(t, err)
}

func TestCleanupWorker_RunOnce(t *testing.T) {
	var gotCutoff time.Time
	w := NewCleanupWorker("audit", func(ctx context.Context, cutoff time.Time) (int64, error) {
		gotCutoff = cutoff
		return 3, nil
	}, 24*time.Hour, time.Hour, logger.Nop())

	assert.Equal(t, int64(3), w.RunOnce(context.Background()))
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), gotCutoff, time.Minute)

	failing := NewCleanupWorker("outbox", func(ctx context.Context, cutoff time.Time) (int64, error) {
		return 0, errors.New("db down")
	}, time.Hour, time.Hour, logger.Nop())
	assert.Zero(t, failing.RunOnce(context.Background()))
}
