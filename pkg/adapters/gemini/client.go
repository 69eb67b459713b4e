package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/your-org/promptchain/pkg/adapters"
)

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 1024
)

// Client implements adapters.Provider for the Gemini generateContent API.
// The underlying genai client is created on first use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewClient(apiKey string, httpClient *http.Client, baseURL string) *Client {
	return &Client{apiKey: apiKey, httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) init(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:     c.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.httpClient,
		}
		if c.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL + "/"}
		}
		c.client, c.initErr = genai.NewClient(ctx, cfg)
		if c.initErr != nil {
			c.initErr = fmt.Errorf("gemini client: %w", c.initErr)
		}
	})
	return c.client, c.initErr
}

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

	client, err := c.init(ctx)
	if err != nil {
		return adapters.GenerateResponse{}, err
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	result, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return adapters.GenerateResponse{}, fmt.Errorf("gemini generate: %w", statusError(err))
	}

	out := adapters.GenerateResponse{
		Text:  result.Text(),
		Model: req.Model,
	}
	if result.ModelVersion != "" {
		out.Model = result.ModelVersion
	}
	if u := result.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
	}
	return out, nil
}

func statusError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return adapters.NewStatusError(apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code > 0 {
		return adapters.NewStatusError(apiErrPtr.Code, err)
	}
	return err
}
