package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/your-org/promptchain/pkg/adapters"
)

// Hooks receives resilience events; metrics.Recorder satisfies it.
type Hooks interface {
	ObserveRetry(provider string)
	ObserveCircuitOpen(provider string)
}

// Provider wraps an adapters.Provider with retries and a circuit breaker.
// The chain runner never retries; this is where collaborator-level
// resilience lives.
type Provider struct {
	next    adapters.Provider
	policy  Policy
	breaker *CircuitBreaker
	bp      BreakerPolicy
	hooks   Hooks
	now     func() time.Time
}

func Wrap(next adapters.Provider, policy Policy, breaker *CircuitBreaker, bp BreakerPolicy, hooks Hooks) *Provider {
	if breaker == nil {
		breaker = NewCircuitBreaker()
	}
	return &Provider{next: next, policy: policy, breaker: breaker, bp: bp, hooks: hooks, now: time.Now}
}

func (p *Provider) Name() string { return p.next.Name() }

func (p *Provider) Generate(ctx context.Context, req adapters.GenerateRequest) (adapters.GenerateResponse, error) {
	name := p.next.Name()
	var resp adapters.GenerateResponse
	err := Execute(ctx, p.policy, func(ctx context.Context) error {
		if !p.breaker.Allow(name, p.bp, p.now()) {
			return NonRetryable(fmt.Errorf("%s: %w", name, ErrCircuitOpen))
		}
		out, err := p.next.Generate(ctx, req)
		if err != nil {
			// Final client errors say nothing about provider health.
			if !IsRetryable(err) {
				return err
			}
			if p.breaker.RecordFailure(name, p.bp, p.now()) && p.hooks != nil {
				p.hooks.ObserveCircuitOpen(name)
			}
			return err
		}
		p.breaker.RecordSuccess(name)
		resp = out
		return nil
	}, func(int, error) {
		if p.hooks != nil {
			p.hooks.ObserveRetry(name)
		}
	})
	return resp, err
}
