package adapters

import "context"

// GenerateRequest is a provider-agnostic text generation request.
type GenerateRequest struct {
	Model       string
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// GenerateResponse is a provider-agnostic generation response. Token counts
// are zero when the provider reports no usage.
type GenerateResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	Raw          []byte
}

// HasUsage reports whether the provider returned token accounting.
func (r GenerateResponse) HasUsage() bool {
	return r.InputTokens > 0 || r.OutputTokens > 0
}

// Provider is the common interface all LLM adapters must satisfy.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	return p.Fn(ctx, req)
}
