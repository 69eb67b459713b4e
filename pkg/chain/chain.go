// Package chain runs an ordered list of prompt templates against a model,
// threading each step's output into later prompts and recording a trace.
package chain

import (
	"context"
	"time"
	"unicode/utf8"
)

// DefaultRole labels steps that do not name a persona.
const DefaultRole = "model"

// Vars holds caller-supplied named values available to every step.
type Vars map[string]any

// Prompt is one step of a chain.
type Prompt struct {
	Role     string `json:"role,omitempty" yaml:"role,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Template string `json:"prompt" yaml:"prompt"`
}

func (p Prompt) role() string {
	if p.Role == "" {
		return DefaultRole
	}
	return p.Role
}

// Prompts builds a role-less chain from plain template strings.
func Prompts(templates ...string) []Prompt {
	out := make([]Prompt, len(templates))
	for i, t := range templates {
		out[i] = Prompt{Template: t}
	}
	return out
}

// Usage is token accounting reported by the model collaborator.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Completion is what an Invoker returns for one prompt. Structured takes
// precedence over Text when both are set. Usage is nil when unknown.
type Completion struct {
	Text       string
	Structured *Object
	Usage      *Usage
}

// Invoker is the model-calling collaborator. model is passed through untouched.
type Invoker interface {
	Invoke(ctx context.Context, model string, prompt string) (Completion, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, model string, prompt string) (Completion, error)

func (f InvokerFunc) Invoke(ctx context.Context, model string, prompt string) (Completion, error) {
	return f(ctx, model, prompt)
}

// StepRecord is one entry of the execution trace.
type StepRecord struct {
	StepNumber int      `json:"step_number"`
	Role       string   `json:"role"`
	Prompt     string   `json:"prompt"`
	Response   Response `json:"response"`
	Tokens     int      `json:"tokens"`
}

// Trace is the full record of one run.
type Trace struct {
	Name        string       `json:"name,omitempty"`
	Steps       []StepRecord `json:"steps"`
	FinalResult Response     `json:"final_result"`
	TotalTokens int          `json:"total_tokens"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// RunOptions tunes optional Run behavior.
type RunOptions struct {
	// IncludeTrace attaches the full Trace to the Result.
	IncludeTrace bool
	// TokenEstimator counts tokens for steps without usage metadata.
	// Defaults to EstimateTokens.
	TokenEstimator func(prompt, response string) int
	// FinalFields narrows a structured final result to these fields.
	FinalFields []string
	// Name labels the trace and observer callbacks.
	Name     string
	Observer Observer
}

// Result of a run. On failure it holds the completed steps only.
type Result struct {
	Final   Response
	Prompts []string
	Tokens  []int
	Trace   *Trace
}

// EstimateTokens approximates token usage at four characters per token.
func EstimateTokens(prompt, response string) int {
	n := utf8.RuneCountInString(prompt) + utf8.RuneCountInString(response)
	return (n + 3) / 4
}

// Run executes prompts in order. Each template is resolved against vars and
// the outputs of earlier steps, sent through invoker, and recorded. The first
// error aborts the run; the returned Result and the error's Trace hold every
// step completed before it. Run never retries and performs no I/O itself.
func Run(ctx context.Context, vars Vars, model string, invoker Invoker, prompts []Prompt, opts RunOptions) (Result, error) {
	if len(prompts) == 0 {
		return Result{}, ErrEmptyChain
	}
	if invoker == nil {
		return Result{}, ErrNilInvoker
	}
	sc, err := newScope(vars, prompts)
	if err != nil {
		return Result{}, err
	}

	obs := opts.Observer
	if obs == nil {
		obs = noopObserver{}
	}
	estimate := opts.TokenEstimator
	if estimate == nil {
		estimate = EstimateTokens
	}
	rec := newRecorder(opts.Name, len(prompts))

	for i, p := range prompts {
		info := StepInfo{Chain: opts.Name, Step: i + 1, Total: len(prompts), Role: p.role()}

		resolved, err := sc.resolve(info.Step, p.Template)
		if err != nil {
			tre, ok := err.(*TemplateResolutionError)
			if !ok {
				tre = &TemplateResolutionError{Step: info.Step, Reason: err.Error()}
			}
			tre.Trace = rec.snapshot()
			obs.AfterStep(ctx, StepEvent{StepInfo: info, Err: tre})
			return rec.partial(), tre
		}
		info.Prompt = resolved

		stepCtx := obs.BeforeStep(ctx, info)
		start := time.Now()
		c, err := invoker.Invoke(stepCtx, model, resolved)
		elapsed := time.Since(start)
		if err != nil {
			mie := &ModelInvocationError{Step: info.Step, Role: info.Role, Err: err, Trace: rec.snapshot()}
			obs.AfterStep(stepCtx, StepEvent{StepInfo: info, Duration: elapsed, Err: mie})
			return rec.partial(), mie
		}

		resp, warn := toResponse(c)
		tokens := 0
		if c.Usage != nil {
			tokens = c.Usage.Total()
		} else {
			tokens = estimate(resolved, resp.Raw())
		}

		record := StepRecord{StepNumber: info.Step, Role: info.Role, Prompt: resolved, Response: resp, Tokens: tokens}
		ev := StepEvent{StepInfo: info, Record: &record, Duration: elapsed}
		if warn != nil {
			ev.Warning = &TraceSerializationWarning{Step: info.Step, Err: warn}
			rec.AddWarning(ev.Warning.Error())
		}
		rec.AddStep(record)
		sc.store(p.Name, resp)
		obs.AfterStep(stepCtx, ev)
	}

	tr := rec.Finalize(opts.FinalFields)
	res := Result{Final: tr.FinalResult, Prompts: rec.prompts(), Tokens: rec.tokens()}
	if opts.IncludeTrace {
		res.Trace = &tr
	}
	return res, nil
}

func toResponse(c Completion) (Response, error) {
	if c.Structured != nil {
		return Response{raw: c.Text, object: c.Structured}, nil
	}
	return parseResponseText(c.Text)
}
