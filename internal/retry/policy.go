package retry

import "time"

// BackoffStrategy defines retry wait behavior.
type BackoffStrategy string

const (
	BackoffLinear            BackoffStrategy = "linear"
	BackoffExponential       BackoffStrategy = "exponential"
	BackoffExponentialJitter BackoffStrategy = "exponential_jitter"
)

// Policy configures retry behavior for provider calls.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffStrategy
	BaseDelay   time.Duration
}

// BreakerPolicy configures failure threshold and reset behavior.
type BreakerPolicy struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// ParseBackoff maps a config string to a strategy; empty means linear.
func ParseBackoff(s string) (BackoffStrategy, bool) {
	switch BackoffStrategy(s) {
	case "", BackoffLinear:
		return BackoffLinear, true
	case BackoffExponential, BackoffExponentialJitter:
		return BackoffStrategy(s), true
	}
	return "", false
}
