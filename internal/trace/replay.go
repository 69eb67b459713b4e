package trace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/your-org/promptchain/pkg/chain"
)

var ErrReplayExhausted = errors.New("trace replay: no recorded response left")

// ReplayInvoker answers each call with the next recorded response and its
// recorded token count, so a replayed run reproduces the original trace when
// the chain and its context are unchanged.
type ReplayInvoker struct {
	mu    sync.Mutex
	steps []chain.StepRecord
	next  int
}

func NewReplayInvoker(tr chain.Trace) *ReplayInvoker {
	return &ReplayInvoker{steps: append([]chain.StepRecord(nil), tr.Steps...)}
}

func (r *ReplayInvoker) Invoke(ctx context.Context, _ string, _ string) (chain.Completion, error) {
	if err := ctx.Err(); err != nil {
		return chain.Completion{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.steps) {
		return chain.Completion{}, fmt.Errorf("%w (recorded %d steps)", ErrReplayExhausted, len(r.steps))
	}
	rec := r.steps[r.next]
	r.next++

	c := chain.Completion{
		Text:  rec.Response.Raw(),
		Usage: &chain.Usage{OutputTokens: rec.Tokens},
	}
	if rec.Response.IsStructured() {
		c.Structured = rec.Response.Object()
	}
	return c, nil
}

// Remaining reports how many recorded responses were not consumed.
func (r *ReplayInvoker) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps) - r.next
}

// ReplayAndCompare re-runs prompts against the recorded responses in tr and
// returns the divergences between tr and the replayed trace. A run error is
// returned alongside the divergences computed from the partial trace.
func ReplayAndCompare(ctx context.Context, tr chain.Trace, vars chain.Vars, prompts []chain.Prompt, opts chain.RunOptions) ([]Divergence, error) {
	if len(tr.Steps) == 0 {
		return nil, errors.New("trace replay: no steps to replay")
	}
	opts.IncludeTrace = true
	if opts.Name == "" {
		opts.Name = tr.Name
	}

	res, err := chain.Run(ctx, vars, "", NewReplayInvoker(tr), prompts, opts)
	if err != nil {
		partial, ok := chain.PartialTrace(err)
		if !ok {
			return nil, err
		}
		return Compare(tr, *partial), err
	}
	return Compare(tr, *res.Trace), nil
}
