package metrics

import (
	"context"
	"errors"

	"github.com/your-org/promptchain/pkg/chain"
)

// Observer feeds chain step events into a Recorder.
type Observer struct {
	Recorder Recorder
}

func (o Observer) BeforeStep(ctx context.Context, _ chain.StepInfo) context.Context { return ctx }

func (o Observer) AfterStep(_ context.Context, ev chain.StepEvent) {
	if o.Recorder == nil {
		return
	}
	tokens := 0
	if ev.Record != nil {
		tokens = ev.Record.Tokens
	}
	o.Recorder.ObserveStep(ev.Chain, ev.Role, StepStatus(ev), ev.Duration, tokens)
}

// StepStatus classifies a step event into one of the Status constants.
func StepStatus(ev chain.StepEvent) string {
	var tre *chain.TemplateResolutionError
	switch {
	case ev.Err == nil && ev.Warning != nil:
		return StatusWarning
	case ev.Err == nil:
		return StatusOK
	case errors.As(ev.Err, &tre):
		return StatusTemplateError
	default:
		return StatusModelError
	}
}
