package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"paygate/internal/adapter/storage/memory"
	"paygate/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCache_PassesThrough(t *testing.T) {
	c := NewCache(memory.NewIdempotencyCache(), DefaultBreakerConfig("settlement"), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	got, err = c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_OpensAfterConsecutiveFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockIdempotencyCache(ctrl)

	cfg := DefaultBreakerConfig("settlement")
	cfg.ConsecutiveFailures = 2
	cfg.OpenTimeout = time.Hour
	c := NewCache(next, cfg, zerolog.Nop())

	down := errors.New("connection refused")
	next.EXPECT().Get(gomock.Any(), "k").Return(nil, down).Times(2)

	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, down)
	_, err = c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, down)

	assert.Equal(t, gobreaker.StateOpen, c.State())

	_, err = c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, c.Set(context.Background(), "k", nil, time.Minute), ErrCircuitOpen)
}

func TestCache_BoundsCallDuration(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockIdempotencyCache(ctrl)

	cfg := DefaultBreakerConfig("settlement")
	cfg.CallTimeout = 20 * time.Millisecond
	c := NewCache(next, cfg, zerolog.Nop())

	next.EXPECT().Get(gomock.Any(), "slow").DoAndReturn(func(ctx context.Context, _ string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := c.Get(context.Background(), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
