// Package echo is an offline provider that answers deterministically. It
// reports no token usage, so chains fall back to estimated counts.
package echo

import (
	"context"
	"fmt"
	"strings"

	"github.com/your-org/promptchain/pkg/adapters"
)

type Client struct {
	prefix string
}

func NewClient(prefix string) *Client {
	if prefix == "" {
		prefix = "echo"
	}
	return &Client{prefix: prefix}
}

func (c *Client) Name() string { return "echo" }

func (c *Client) Generate(ctx context.Context, req adapters.GenerateRequest) (adapters.GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return adapters.GenerateResponse{}, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return adapters.GenerateResponse{}, adapters.ErrEmptyPrompt
	}
	model := req.Model
	if model == "" {
		model = "echo"
	}
	return adapters.GenerateResponse{
		Text:  fmt.Sprintf("[%s:%s] %s", c.prefix, model, req.Prompt),
		Model: model,
	}, nil
}
