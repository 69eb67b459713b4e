package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/your-org/promptchain/pkg/adapters"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

// ProviderError wraps an underlying error with retryability metadata.
type ProviderError struct {
	Cause     error
	Retryable bool
}

func (e ProviderError) Error() string {
	if e.Cause == nil {
		return "provider error"
	}
	return fmt.Sprintf("provider error: %v", e.Cause)
}

func (e ProviderError) Unwrap() error {
	return e.Cause
}

// NonRetryable marks an error as not eligible for retries.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return ProviderError{Cause: err, Retryable: false}
}

// IsRetryable classifies provider failures. Caller bugs (missing key, empty
// prompt), cancellation and 4xx responses other than 429 are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, adapters.ErrMissingAPIKey) || errors.Is(err, adapters.ErrEmptyPrompt) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var se *adapters.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return true
}
