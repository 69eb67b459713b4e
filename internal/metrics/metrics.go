// Package metrics records chain and provider instrumentation.
package metrics

import (
	"sync"
	"time"
)

// Step outcomes used as the status label.
const (
	StatusOK            = "ok"
	StatusWarning       = "warning"
	StatusTemplateError = "template_error"
	StatusModelError    = "model_error"
)

// Recorder defines the metric hooks used by the runner observer and the
// resilient provider wrapper.
type Recorder interface {
	ObserveStep(chain string, role string, status string, duration time.Duration, tokens int)
	ObserveRetry(provider string)
	ObserveCircuitOpen(provider string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStep(string, string, string, time.Duration, int) {}
func (NoopRecorder) ObserveRetry(string)                                    {}
func (NoopRecorder) ObserveCircuitOpen(string)                              {}

// StepSample is one ObserveStep call.
type StepSample struct {
	Chain    string
	Role     string
	Status   string
	Duration time.Duration
	Tokens   int
}

// Snapshot is a point-in-time copy of an InMemoryRecorder.
type Snapshot struct {
	Steps        []StepSample
	Tokens       int
	Retries      map[string]int
	CircuitOpens map[string]int
}

// InMemoryRecorder keeps samples in memory; used by tests and `run --stats`.
type InMemoryRecorder struct {
	mu    sync.Mutex
	state Snapshot
}

func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{state: Snapshot{Retries: map[string]int{}, CircuitOpens: map[string]int{}}}
}

func (r *InMemoryRecorder) ObserveStep(chain string, role string, status string, duration time.Duration, tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Steps = append(r.state.Steps, StepSample{Chain: chain, Role: role, Status: status, Duration: duration, Tokens: tokens})
	r.state.Tokens += tokens
}

func (r *InMemoryRecorder) ObserveRetry(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Retries[provider]++
}

func (r *InMemoryRecorder) ObserveCircuitOpen(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.CircuitOpens[provider]++
}

func (r *InMemoryRecorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := Snapshot{
		Steps:        append([]StepSample(nil), r.state.Steps...),
		Tokens:       r.state.Tokens,
		Retries:      make(map[string]int, len(r.state.Retries)),
		CircuitOpens: make(map[string]int, len(r.state.CircuitOpens)),
	}
	for k, v := range r.state.Retries {
		out.Retries[k] = v
	}
	for k, v := range r.state.CircuitOpens {
		out.CircuitOpens[k] = v
	}
	return out
}
