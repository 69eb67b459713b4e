package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/promptchain/pkg/chain"
)

type fakeProvider struct {
	last GenerateRequest
	resp GenerateResponse
	err  error
}

func (*fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, req GenerateRequest) (GenerateResponse, error) {
	f.last = req
	return f.resp, f.err
}

func TestNewInvokerCarriesUsage(t *testing.T) {
	p := &fakeProvider{resp: GenerateResponse{Text: "world", InputTokens: 2, OutputTokens: 5}}
	inv := NewInvoker(p, GenerateRequest{Model: "default-model", MaxTokens: 64, System: "be brief"})

	c, err := inv.Invoke(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "world", c.Text)
	require.NotNil(t, c.Usage)
	assert.Equal(t, 7, c.Usage.Total())
	assert.Equal(t, GenerateRequest{Model: "default-model", Prompt: "hello", System: "be brief", MaxTokens: 64}, p.last)

	_, err = inv.Invoke(context.Background(), "override", "again")
	require.NoError(t, err)
	assert.Equal(t, "override", p.last.Model)
}

func TestNewInvokerWithoutUsage(t *testing.T) {
	inv := NewInvoker(&fakeProvider{resp: GenerateResponse{Text: "x"}}, GenerateRequest{})
	c, err := inv.Invoke(context.Background(), "m", "p")
	require.NoError(t, err)
	assert.Nil(t, c.Usage)
}

func TestNewInvokerInsideChain(t *testing.T) {
	boom := errors.New("boom")
	inv := NewInvoker(&fakeProvider{err: boom}, GenerateRequest{})
	_, err := chain.Run(context.Background(), nil, "m", inv, chain.Prompts("a"), chain.RunOptions{})
	assert.ErrorIs(t, err, boom)

	_, err = NewInvoker(nil, GenerateRequest{}).Invoke(context.Background(), "m", "p")
	assert.ErrorIs(t, err, ErrNilProvider)
}
