package adapters

import (
	"context"

	"github.com/your-org/promptchain/pkg/chain"
)

// NewInvoker bridges a Provider to chain.Invoker. defaults fills request
// fields other than Model and Prompt; a non-empty model handle from the
// runner overrides defaults.Model.
func NewInvoker(p Provider, defaults GenerateRequest) chain.Invoker {
	return chain.InvokerFunc(func(ctx context.Context, model string, prompt string) (chain.Completion, error) {
		if p == nil {
			return chain.Completion{}, ErrNilProvider
		}
		req := defaults
		req.Prompt = prompt
		if model != "" {
			req.Model = model
		}
		resp, err := p.Generate(ctx, req)
		if err != nil {
			return chain.Completion{}, err
		}
		c := chain.Completion{Text: resp.Text}
		if resp.HasUsage() {
			c.Usage = &chain.Usage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens}
		}
		return c, nil
	})
}
