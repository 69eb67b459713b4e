package chain

// recorder accumulates step records for a single run. Runs are sequential, so
// it needs no locking; each Run owns its recorder exclusively.
type recorder struct {
	trace Trace
}

func newRecorder(name string, capacity int) *recorder {
	return &recorder{trace: Trace{Name: name, Steps: make([]StepRecord, 0, capacity)}}
}

func (r *recorder) AddStep(step StepRecord) {
	r.trace.Steps = append(r.trace.Steps, step)
	r.trace.TotalTokens += step.Tokens
}

func (r *recorder) AddWarning(msg string) {
	r.trace.Warnings = append(r.trace.Warnings, msg)
}

// Finalize returns a copy of the trace with the final result set. A
// structured final result is narrowed to fields when any are given.
func (r *recorder) Finalize(fields []string) Trace {
	out := r.snapshot()
	if len(out.Steps) == 0 {
		return *out
	}
	final := out.Steps[len(out.Steps)-1].Response
	if len(fields) > 0 && final.IsStructured() {
		final = Structured(final.Object().Subset(fields))
	}
	out.FinalResult = final
	return *out
}

// snapshot copies the steps recorded so far. FinalResult is the latest
// completed response.
func (r *recorder) snapshot() *Trace {
	out := Trace{
		Name:        r.trace.Name,
		Steps:       append([]StepRecord(nil), r.trace.Steps...),
		TotalTokens: r.trace.TotalTokens,
		Warnings:    append([]string(nil), r.trace.Warnings...),
	}
	if out.Steps == nil {
		out.Steps = []StepRecord{}
	}
	if n := len(out.Steps); n > 0 {
		out.FinalResult = out.Steps[n-1].Response
	}
	return &out
}

func (r *recorder) partial() Result {
	tr := r.snapshot()
	return Result{Final: tr.FinalResult, Prompts: r.prompts(), Tokens: r.tokens()}
}

func (r *recorder) prompts() []string {
	out := make([]string, len(r.trace.Steps))
	for i, s := range r.trace.Steps {
		out[i] = s.Prompt
	}
	return out
}

func (r *recorder) tokens() []int {
	out := make([]int, len(r.trace.Steps))
	for i, s := range r.trace.Steps {
		out[i] = s.Tokens
	}
	return out
}
