package metrics

import "time"

// MultiRecorder fans out metrics to multiple recorders.
type MultiRecorder struct {
	recorders []Recorder
}

func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	nonNil := make([]Recorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			nonNil = append(nonNil, r)
		}
	}
	return &MultiRecorder{recorders: nonNil}
}

func (m *MultiRecorder) ObserveStep(chain string, role string, status string, duration time.Duration, tokens int) {
	for _, r := range m.recorders {
		r.ObserveStep(chain, role, status, duration, tokens)
	}
}

func (m *MultiRecorder) ObserveRetry(provider string) {
	for _, r := range m.recorders {
		r.ObserveRetry(provider)
	}
}

func (m *MultiRecorder) ObserveCircuitOpen(provider string) {
	for _, r := range m.recorders {
		r.ObserveCircuitOpen(provider)
	}
}
