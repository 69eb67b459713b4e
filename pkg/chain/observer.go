package chain

import (
	"context"
	"time"
)

// StepInfo identifies a step about to be sent to the model.
type StepInfo struct {
	Chain  string
	Step   int
	Total  int
	Role   string
	Prompt string
}

// StepEvent is reported once per attempted step. Record is nil when Err is set.
type StepEvent struct {
	StepInfo
	Record   *StepRecord
	Duration time.Duration
	Warning  *TraceSerializationWarning
	Err      error
}

// Observer receives step lifecycle callbacks. BeforeStep may return a derived
// context, which is handed to the Invoker and to AfterStep. Observers cannot
// alter results.
type Observer interface {
	BeforeStep(ctx context.Context, info StepInfo) context.Context
	AfterStep(ctx context.Context, ev StepEvent)
}

type noopObserver struct{}

func (noopObserver) BeforeStep(ctx context.Context, _ StepInfo) context.Context { return ctx }
func (noopObserver) AfterStep(context.Context, StepEvent)                        {}

// MultiObserver fans callbacks out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) BeforeStep(ctx context.Context, info StepInfo) context.Context {
	for _, o := range m {
		if o != nil {
			ctx = o.BeforeStep(ctx, info)
		}
	}
	return ctx
}

func (m MultiObserver) AfterStep(ctx context.Context, ev StepEvent) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i] != nil {
			m[i].AfterStep(ctx, ev)
		}
	}
}
