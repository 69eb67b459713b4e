package anthropic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/promptchain/internal/retry"
	"github.com/your-org/promptchain/pkg/adapters"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "hello")
		assert.Contains(t, string(body), `"max_tokens":1024`)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",` +
			`"content":[{"type":"text","text":"world"}],"stop_reason":"end_turn",` +
			`"usage":{"input_tokens":2,"output_tokens":5}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.Client(), srv.URL)
	resp, err := c.Generate(context.Background(), adapters.GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "world", resp.Text)
	assert.Equal(t, 2, resp.InputTokens)
	assert.Equal(t, 5, resp.OutputTokens)
	assert.Equal(t, "claude-test", resp.Model)
}

func TestGenerateValidatesInput(t *testing.T) {
	_, err := NewClient("", nil, "").Generate(context.Background(), adapters.GenerateRequest{Prompt: "x"})
	assert.ErrorIs(t, err, adapters.ErrMissingAPIKey)

	_, err = NewClient("k", nil, "").Generate(context.Background(), adapters.GenerateRequest{Prompt: "  "})
	assert.ErrorIs(t, err, adapters.ErrEmptyPrompt)
}

func TestGenerateSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", srv.Client(), srv.URL).Generate(context.Background(), adapters.GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic generate")
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	p := retry.Wrap(NewClient("k", srv.Client(), srv.URL), retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil, retry.BreakerPolicy{}, nil)
	_, err := p.Generate(context.Background(), adapters.GenerateRequest{Prompt: "x"})
	require.Error(t, err)

	var se *adapters.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.False(t, retry.IsRetryable(err))
	assert.Equal(t, int32(1), hits.Load())
}
