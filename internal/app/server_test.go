package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/promptchain/internal/trace"
	"github.com/your-org/promptchain/pkg/adapters"
)

func postRun(t *testing.T, srv *httptest.Server, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestServerRunAndFetchTrace(t *testing.T) {
	var calls atomic.Int32
	env := newTestEnv(t, scriptedProvider(&calls, "", nil))
	srv := httptest.NewServer(env.app.Handler())
	defer srv.Close()

	resp, body := postRun(t, srv, `{"chain_path": "duo", "context": {"topic": "rain"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var run struct {
		ID     string         `json:"id"`
		Status string         `json:"status"`
		Trace  map[string]any `json:"trace"`
	}
	require.NoError(t, json.Unmarshal(body, &run))
	assert.Equal(t, trace.StatusSucceeded, run.Status)
	assert.Equal(t, float64(18), run.Trace["total_tokens"])
	assert.Equal(t, map[string]any{"score": float64(7)}, run.Trace["final_result"])
	steps := run.Trace["steps"].([]any)
	assert.Equal(t, "Describe rain.", steps[0].(map[string]any)["prompt"])

	got, err := http.Get(srv.URL + "/api/traces/" + run.ID)
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)
	var rec trace.Record
	require.NoError(t, json.NewDecoder(got.Body).Decode(&rec))
	assert.Equal(t, run.ID, rec.ID)
	assert.Equal(t, "duo", rec.Chain)
	assert.Len(t, rec.Trace.Steps, 2)

	list, err := http.Get(srv.URL + "/api/traces?limit=10")
	require.NoError(t, err)
	defer list.Body.Close()
	var listed struct {
		Traces []trace.Summary `json:"traces"`
	}
	require.NoError(t, json.NewDecoder(list.Body).Decode(&listed))
	require.Len(t, listed.Traces, 1)
	assert.Equal(t, run.ID, listed.Traces[0].ID)
}

func TestServerRunUsesRequestContext(t *testing.T) {
	var calls atomic.Int32
	env := newTestEnv(t, scriptedProvider(&calls, "", nil))
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.ChainsDir, "open.yaml"), []byte(openChain), 0o600))
	srv := httptest.NewServer(env.app.Handler())
	defer srv.Close()

	resp, body := postRun(t, srv, `{"chain_path": "open", "context": {"topic": "dunes"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var run RunResponse
	require.NoError(t, json.Unmarshal(body, &run))
	require.NotNil(t, run.Trace)
	assert.Equal(t, "Describe dunes.", run.Trace.Steps[0].Prompt)

	resp, body = postRun(t, srv, `{"chain_path": "open"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "topic")
	assert.Equal(t, int32(1), calls.Load())
}

func TestServerRunFailureReturnsPartialTrace(t *testing.T) {
	var calls atomic.Int32
	env := newTestEnv(t, scriptedProvider(&calls, "Critique", &adapters.StatusError{Code: http.StatusUnauthorized, Body: "no"}))
	srv := httptest.NewServer(env.app.Handler())
	defer srv.Close()

	resp, body := postRun(t, srv, `{"chain_path": "duo.yaml"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))

	var run RunResponse
	require.NoError(t, json.Unmarshal(body, &run))
	assert.Equal(t, trace.StatusFailed, run.Status)
	assert.Equal(t, 2, run.FailedStep)
	assert.Contains(t, run.Error, "status 401")
	require.NotNil(t, run.Trace)
	assert.Len(t, run.Trace.Steps, 1)

	got, err := http.Get(srv.URL + "/api/traces/" + run.ID)
	require.NoError(t, err)
	got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)
}

func TestServerRejectsBadRequests(t *testing.T) {
	var calls atomic.Int32
	env := newTestEnv(t, scriptedProvider(&calls, "", nil))
	srv := httptest.NewServer(env.app.Handler())
	defer srv.Close()

	cases := map[string]struct {
		body string
		code int
	}{
		"not json":  {`{`, http.StatusBadRequest},
		"no path":   {`{}`, http.StatusBadRequest},
		"traversal": {`{"chain_path": "../secrets.yaml"}`, http.StatusBadRequest},
		"absolute":  {`{"chain_path": "/etc/passwd"}`, http.StatusBadRequest},
		"missing":   {`{"chain_path": "nope"}`, http.StatusNotFound},
		"provider":  {`{"chain_path": "duo", "provider": "nope"}`, http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, body := postRun(t, srv, tc.body)
			assert.Equal(t, tc.code, resp.StatusCode, string(body))
			assert.Contains(t, string(body), `"error"`)
		})
	}
	assert.Zero(t, calls.Load())

	resp, err := http.Get(srv.URL + "/api/traces/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/traces?limit=many")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerHealth(t *testing.T) {
	var calls atomic.Int32
	env := newTestEnv(t, scriptedProvider(&calls, "", nil))
	srv := httptest.NewServer(env.app.Handler())
	defer srv.Close()

	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, want, string(b))
	}

	resp, err := http.Post(srv.URL+"/healthz", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
