package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusError is returned for non-2xx provider responses. SDK clients wrap
// their own API errors in it so retry policy sees one shape.
type StatusError struct {
	Code int
	Body string
	Err  error
}

// NewStatusError wraps an SDK error that carries an HTTP status.
func NewStatusError(code int, err error) *StatusError {
	return &StatusError{Code: code, Body: err.Error(), Err: err}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// DoJSON sends payload as JSON, decodes the response into out when non-nil
// and returns the raw body.
func DoJSON(ctx context.Context, client *http.Client, req *http.Request, payload any, out any) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(b))
		req.ContentLength = int64(len(b))
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return body, fmt.Errorf("parse response: %w", err)
		}
	}
	return body, nil
}
