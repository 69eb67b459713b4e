package retry

import (
	"sync"
	"time"
)

// CircuitBreaker maintains per-provider breaker state. It is shared by
// concurrent runs, unlike the chain runner itself.
type CircuitBreaker struct {
	mu     sync.Mutex
	states map[string]circuitState
}

type circuitState struct {
	consecutiveFailures int
	openUntil           time.Time
}

func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{states: make(map[string]circuitState)}
}

func (cb *CircuitBreaker) Allow(provider string, policy BreakerPolicy, now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if policy.FailureThreshold <= 0 {
		return true
	}

	s := cb.states[provider]
	if s.openUntil.IsZero() {
		return true
	}
	if now.Before(s.openUntil) {
		return false
	}

	// Half-open: let one trial request through.
	s.openUntil = time.Time{}
	s.consecutiveFailures = 0
	cb.states[provider] = s
	return true
}

func (cb *CircuitBreaker) RecordSuccess(provider string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := cb.states[provider]
	s.consecutiveFailures = 0
	s.openUntil = time.Time{}
	cb.states[provider] = s
}

// RecordFailure counts a failure and reports whether it opened the breaker.
func (cb *CircuitBreaker) RecordFailure(provider string, policy BreakerPolicy, now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if policy.FailureThreshold <= 0 {
		return false
	}
	if policy.ResetTimeout <= 0 {
		policy.ResetTimeout = 60 * time.Second
	}

	s := cb.states[provider]
	s.consecutiveFailures++
	opened := false
	if s.consecutiveFailures >= policy.FailureThreshold {
		s.openUntil = now.Add(policy.ResetTimeout)
		s.consecutiveFailures = 0
		opened = true
	}
	cb.states[provider] = s
	return opened
}
