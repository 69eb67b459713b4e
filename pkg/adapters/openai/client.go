package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/your-org/promptchain/pkg/adapters"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 1024
)

// Client implements adapters.Provider for the OpenAI Responses API.
type Client struct {
	apiKey string
	client openai.Client
}

func NewClient(apiKey string, httpClient *http.Client, baseURL string) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	return &Client{apiKey: apiKey, client: openai.NewClient(opts...)}
}

func (c *Client) Name() string { return "openai" }

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

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(req.Model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(req.Prompt),
		},
		MaxOutputTokens: openai.Int(int64(req.MaxTokens)),
	}
	if req.System != "" {
		params.Instructions = openai.String(req.System)
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	result, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return adapters.GenerateResponse{}, fmt.Errorf("openai generate: %w", statusError(err))
	}

	return adapters.GenerateResponse{
		Text:         result.OutputText(),
		Model:        string(result.Model),
		InputTokens:  int(result.Usage.InputTokens),
		OutputTokens: int(result.Usage.OutputTokens),
		Raw:          []byte(result.RawJSON()),
	}, nil
}

func statusError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return adapters.NewStatusError(apiErr.StatusCode, err)
	}
	return err
}
