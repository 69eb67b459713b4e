package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/your-org/promptchain/pkg/adapters"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
)

// Client implements adapters.Provider for the Anthropic Messages API.
type Client struct {
	apiKey string
	client anthropic.Client
}

func NewClient(apiKey string, httpClient *http.Client, baseURL string) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are owned by the caller's retry policy.
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	return &Client{apiKey: apiKey, client: anthropic.NewClient(opts...)}
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Generate(ctx context.Context, req adapters.GenerateRequest) (adapters.GenerateResponse, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return adapters.GenerateResponse{}, adapters.ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return adapters.GenerateResponse{}, adapters.ErrEmptyPrompt
	}
	if req.Model == "" {
		req.Model = defaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return adapters.GenerateResponse{}, fmt.Errorf("anthropic generate: %w", statusError(err))
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}

	return adapters.GenerateResponse{
		Text:         text.String(),
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		Raw:          []byte(msg.RawJSON()),
	}, nil
}

func statusError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return adapters.NewStatusError(apiErr.StatusCode, err)
	}
	return err
}
