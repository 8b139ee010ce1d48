package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 2, Cooldown: time.Hour}, discardLogger())
	down := errors.New("503")
	calls := 0
	failing := func(context.Context) error {
		calls++
		return down
	}

	ctx := context.Background()
	assert.ErrorIs(t, b.Execute(ctx, failing), down)
	assert.Equal(t, "closed", b.State())
	assert.ErrorIs(t, b.Execute(ctx, failing), down)
	assert.Equal(t, "open", b.State())

	err := b.Execute(ctx, failing)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls, "open circuit must not call the operation")
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, Cooldown: 20 * time.Millisecond}, discardLogger())
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, func(context.Context) error { return errors.New("boom") }))
	require.Equal(t, "open", b.State())

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, b.Execute(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, "closed", b.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, Cooldown: time.Hour}, discardLogger())
	err := b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", b.State())
}

func TestBreakerDefaults(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "defaults"}, nil)
	fail := func(context.Context) error { return errors.New("x") }
	for i := 0; i < DefaultMaxFailures-1; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	assert.Equal(t, "closed", b.State())
	_ = b.Execute(context.Background(), fail)
	assert.Equal(t, "open", b.State())
}
