// Package resilience protects the bot from a failing upstream with a
// circuit breaker built on sony/gobreaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned without calling the operation while the
// breaker is open or its half-open trial request is already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Default settings applied to zero fields of BreakerConfig.
const (
	DefaultMaxFailures = 5
	DefaultCooldown    = 30 * time.Second
)

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	Name string
	// MaxFailures consecutive failures open the circuit.
	MaxFailures int
	// Cooldown is how long the circuit stays open before a trial request is let
	// through.
	Cooldown time.Duration
}

// Breaker fails fast after repeated upstream failures.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "circuit_breaker", "name", cfg.Name)

	maxFailures := uint32(cfg.MaxFailures)
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A caller giving up is not evidence that the upstream is down.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings), logger: log}
}

// Execute runs op unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, op(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.DebugContext(ctx, "Rejected call while circuit is open")
		return ErrCircuitOpen
	}
	return err
}

// State returns "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}
