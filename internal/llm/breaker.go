package llm

import (
	"context"
	"errors"

	"github.com/edgard/happybot/internal/resilience"
)

type guardedCompleter struct {
	provider string
	next     Completer
	breaker  *resilience.Breaker
}

// WithBreaker stops calling next while the breaker is open. Rejected calls
// fail with an *UpstreamError wrapping resilience.ErrCircuitOpen.
func WithBreaker(provider string, next Completer, breaker *resilience.Breaker) Completer {
	return &guardedCompleter{provider: provider, next: next, breaker: breaker}
}

func (g *guardedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var reply string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		reply, err = g.next.Complete(ctx, prompt)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", &UpstreamError{Provider: g.provider, Err: err}
	}
	return reply, err
}
