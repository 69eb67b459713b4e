package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/your-org/promptchain/pkg/adapters"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.2"
)

// Client implements adapters.Provider for a local Ollama /api/generate endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) Name() string { return "ollama" }

func (c *Client) Generate(ctx context.Context, req adapters.GenerateRequest) (adapters.GenerateResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return adapters.GenerateResponse{}, adapters.ErrEmptyPrompt
	}
	if req.Model == "" {
		req.Model = defaultModel
	}

	hReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", nil)
	if err != nil {
		return adapters.GenerateResponse{}, fmt.Errorf("build request: %w", err)
	}

	options := map[string]any{}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	payload := map[string]any{
		"model":  req.Model,
		"prompt": req.Prompt,
		"stream": false,
	}
	if req.System != "" {
		payload["system"] = req.System
	}
	if len(options) > 0 {
		payload["options"] = options
	}

	var parsed struct {
		Model           string `json:"model"`
		Response        string `json:"response"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	body, err := adapters.DoJSON(ctx, c.httpClient, hReq, payload, &parsed)
	if err != nil {
		return adapters.GenerateResponse{}, fmt.Errorf("ollama generate: %w", err)
	}

	return adapters.GenerateResponse{
		Text:         parsed.Response,
		Model:        parsed.Model,
		InputTokens:  parsed.PromptEvalCount,
		OutputTokens: parsed.EvalCount,
		Raw:          body,
	}, nil
}
