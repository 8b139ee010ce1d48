// Package llm implements the completion collaborators that turn a prompt
// into a generated reply.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edgard/happybot/internal/config"
	"github.com/edgard/happybot/internal/resilience"
)

// Completer generates a reply for a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// UpstreamError reports that the completion API was unreachable, answered
// with a non-success status, or returned a payload without usable text.
type UpstreamError struct {
	Provider   string
	StatusCode int // 0 when no HTTP status was received
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s completion failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err is or wraps an *UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

var errEmptyCompletion = errors.New("response contained no generated text")

// New returns the Completer selected by cfg.Provider, guarded by a circuit
// breaker unless cfg.BreakerFailures is zero.
func New(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (Completer, error) {
	var (
		c        Completer
		err      error
		provider = cfg.Provider
	)
	switch provider {
	case "", ProviderOpenAI:
		provider = ProviderOpenAI
		c, err = NewOpenAIClient(cfg, log)
	case ProviderGemini:
		c, err = NewGeminiClient(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.BreakerFailures <= 0 {
		return c, nil
	}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:        provider,
		MaxFailures: cfg.BreakerFailures,
		Cooldown:    cfg.BreakerCooldown,
	}, log)
	return WithBreaker(provider, c, breaker), nil
}
