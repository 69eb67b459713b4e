package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
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
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"input":"hello"`)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"resp_1","object":"response","created_at":1,"model":"gpt-test","status":"completed",` +
			`"output":[{"type":"message","id":"msg_1","role":"assistant","status":"completed",` +
			`"content":[{"type":"output_text","text":"world","annotations":[]}]}],` +
			`"usage":{"input_tokens":2,"output_tokens":5,"total_tokens":7}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.Client(), srv.URL)
	resp, err := c.Generate(context.Background(), adapters.GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "world", resp.Text)
	assert.Equal(t, 2, resp.InputTokens)
	assert.Equal(t, 5, resp.OutputTokens)
}

func TestGenerateRequiresKey(t *testing.T) {
	_, err := NewClient("", nil, "").Generate(context.Background(), adapters.GenerateRequest{Prompt: "x"})
	assert.ErrorIs(t, err, adapters.ErrMissingAPIKey)
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
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
