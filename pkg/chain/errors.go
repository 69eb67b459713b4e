package chain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyChain    = errors.New("chain: prompt list is empty")
	ErrNilInvoker    = errors.New("chain: invoker is nil")
	ErrReservedKey   = errors.New("chain: context key is reserved")
	ErrDuplicateName = errors.New("chain: duplicate context key")
	ErrInvalidName   = errors.New("chain: invalid step name")
)

// TemplateResolutionError reports a placeholder that could not be resolved.
// Trace holds the steps completed before the failure.
type TemplateResolutionError struct {
	Step   int
	Ref    string
	Reason string
	Trace  *Trace
}

func (e *TemplateResolutionError) Error() string {
	return fmt.Sprintf("chain: step %d: unresolved placeholder %q: %s", e.Step, e.Ref, e.Reason)
}

// ModelInvocationError wraps an error returned by the Invoker.
// Trace holds the steps completed before the failure.
type ModelInvocationError struct {
	Step  int
	Role  string
	Err   error
	Trace *Trace
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("chain: step %d (%s): model invocation failed: %v", e.Step, e.Role, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}

// TraceSerializationWarning is non-fatal: a response looked like JSON but did
// not decode, so its raw text was kept.
type TraceSerializationWarning struct {
	Step int
	Err  error
}

func (w TraceSerializationWarning) Error() string {
	return fmt.Sprintf("step %d: response kept as text: %v", w.Step, w.Err)
}

// PartialTrace returns the trace attached to a run error, if any.
func PartialTrace(err error) (*Trace, bool) {
	var tre *TemplateResolutionError
	if errors.As(err, &tre) && tre.Trace != nil {
		return tre.Trace, true
	}
	var mie *ModelInvocationError
	if errors.As(err, &mie) && mie.Trace != nil {
		return mie.Trace, true
	}
	return nil, false
}

// FailedStep returns the 1-based step a run error occurred at, or 0.
func FailedStep(err error) int {
	var tre *TemplateResolutionError
	if errors.As(err, &tre) {
		return tre.Step
	}
	var mie *ModelInvocationError
	if errors.As(err, &mie) {
		return mie.Step
	}
	return 0
}
