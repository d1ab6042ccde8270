package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/pkg/logger"
)

type fakeClient struct {
	err       error
	published map[string][][]byte
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	if f.published == nil {
		f.published = map[string][][]byte{}
	}
	f.published[channel] = append(f.published[channel], message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func (f *fakeClient) Close() error { return nil }

func TestPublish(t *testing.T) {
	c := &fakeClient{}
	b := newBroker(c, Config{}, logger.Nop())

	require.NoError(t, b.Publish(context.Background(), "referral.reading.created", []byte(`{"a":1}`)))
	assert.Equal(t, [][]byte{[]byte(`{"a":1}`)}, c.published["referral.reading.created"])
	assert.NoError(t, b.PingContext(context.Background()))
}

func TestPublish_BreakerOpensAfterFailures(t *testing.T) {
	c := &fakeClient{err: errors.New("connection refused")}
	b := newBroker(c, Config{FailureThreshold: 2, OpenTimeout: time.Hour}, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := b.Publish(ctx, "ch", []byte("x"))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}

	// the breaker is open: the client is not called even once it recovers
	c.err = nil
	err := b.Publish(ctx, "ch", []byte("x"))
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Empty(t, c.published)
}
