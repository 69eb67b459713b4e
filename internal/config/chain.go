package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/your-org/promptchain/internal/retry"
	"github.com/your-org/promptchain/pkg/chain"
)

var (
	ErrChainEmptySteps = errors.New("chain: steps list is empty")
	ErrChainEmptyStep  = errors.New("chain: step prompt is empty")
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,63}$`)

// ChainFile is a chain definition as stored in YAML.
type ChainFile struct {
	Name           string               `yaml:"name"`
	Description    string               `yaml:"description,omitempty"`
	Provider       string               `yaml:"provider,omitempty"`
	Model          string               `yaml:"model,omitempty"`
	System         string               `yaml:"system,omitempty"`
	MaxTokens      int                  `yaml:"max_tokens,omitempty"`
	Temperature    *float64             `yaml:"temperature,omitempty"`
	Context        map[string]any       `yaml:"context,omitempty"`
	FinalFields    []string             `yaml:"final_fields,omitempty"`
	Retry          RetryConfig          `yaml:"retry,omitempty"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker,omitempty"`
	Steps          []chain.Prompt       `yaml:"steps"`
}

// RetryConfig declares collaborator retry options.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts,omitempty"`
	Backoff     string `yaml:"backoff,omitempty"`
	BaseDelay   string `yaml:"base_delay,omitempty"`
}

// CircuitBreakerConfig declares per-provider circuit breaker options.
type CircuitBreakerConfig struct {
	FailureThreshold int    `yaml:"failure_threshold,omitempty"`
	ResetTimeout     string `yaml:"reset_timeout,omitempty"`
}

// LoadChain parses and validates a YAML chain definition. A missing name is
// derived from the file name.
func LoadChain(path string) (ChainFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ChainFile{}, fmt.Errorf("chain: read %q: %w", path, err)
	}
	def, err := ParseChain(b)
	if err != nil {
		return ChainFile{}, fmt.Errorf("chain: %q: %w", path, err)
	}
	if def.Name == "" {
		def.Name = Slug(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	if err := ValidateChain(def); err != nil {
		return ChainFile{}, err
	}
	return def, nil
}

// ParseChain decodes a definition without validating it.
func ParseChain(b []byte) (ChainFile, error) {
	var def ChainFile
	if err := yaml.Unmarshal(b, &def); err != nil {
		return ChainFile{}, fmt.Errorf("unmarshal: %w", err)
	}
	return def, nil
}

// ValidateChain enforces structural correctness. Placeholders are checked by
// CheckPlaceholders once the caller's context is known.
func ValidateChain(def ChainFile) error {
	if def.Name != "" && !namePattern.MatchString(def.Name) {
		return fmt.Errorf("chain: invalid name %q", def.Name)
	}
	if len(def.Steps) == 0 {
		return ErrChainEmptySteps
	}
	for i, s := range def.Steps {
		if strings.TrimSpace(s.Template) == "" {
			return fmt.Errorf("%w: step %d", ErrChainEmptyStep, i+1)
		}
	}
	if def.MaxTokens < 0 {
		return errors.New("chain: max_tokens is negative")
	}
	if def.Temperature != nil && (*def.Temperature < 0 || *def.Temperature > 2) {
		return fmt.Errorf("chain: temperature %v out of range [0,2]", *def.Temperature)
	}
	if _, err := def.RetryPolicy(); err != nil {
		return err
	}
	if _, err := def.BreakerPolicy(); err != nil {
		return err
	}
	return nil
}

// CheckPlaceholders resolves every step's references against the context
// merged with overrides, without calling a model.
func (c ChainFile) CheckPlaceholders(overrides map[string]any) error {
	if err := chain.Validate(c.Vars(overrides), c.Steps); err != nil {
		return fmt.Errorf("chain %q: %w", c.Name, err)
	}
	return nil
}

// Vars merges the definition's context with overrides; overrides win.
func (c ChainFile) Vars(overrides map[string]any) chain.Vars {
	out := make(chain.Vars, len(c.Context)+len(overrides))
	for k, v := range c.Context {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// RetryPolicy converts the retry block. Zero attempts means a single try.
func (c ChainFile) RetryPolicy() (retry.Policy, error) {
	if c.Retry.MaxAttempts < 0 {
		return retry.Policy{}, errors.New("chain: retry.max_attempts is negative")
	}
	backoff, ok := retry.ParseBackoff(c.Retry.Backoff)
	if !ok {
		return retry.Policy{}, fmt.Errorf("chain: unknown retry.backoff %q", c.Retry.Backoff)
	}
	p := retry.Policy{MaxAttempts: c.Retry.MaxAttempts, Backoff: backoff}
	if c.Retry.BaseDelay != "" {
		d, err := time.ParseDuration(c.Retry.BaseDelay)
		if err != nil {
			return retry.Policy{}, fmt.Errorf("chain: invalid retry.base_delay: %w", err)
		}
		p.BaseDelay = d
	}
	return p, nil
}

// BreakerPolicy converts the circuit_breaker block.
func (c ChainFile) BreakerPolicy() (retry.BreakerPolicy, error) {
	if c.CircuitBreaker.FailureThreshold < 0 {
		return retry.BreakerPolicy{}, errors.New("chain: negative circuit_breaker.failure_threshold")
	}
	p := retry.BreakerPolicy{FailureThreshold: c.CircuitBreaker.FailureThreshold}
	if c.CircuitBreaker.ResetTimeout != "" {
		d, err := time.ParseDuration(c.CircuitBreaker.ResetTimeout)
		if err != nil {
			return retry.BreakerPolicy{}, fmt.Errorf("chain: invalid circuit_breaker.reset_timeout: %w", err)
		}
		p.ResetTimeout = d
	}
	return p, nil
}

// Slug lowercases raw and replaces anything outside [a-z0-9_-] with '-'.
func Slug(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-_")
	if out == "" || out[0] < 'a' || out[0] > 'z' {
		out = "chain-" + out
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return strings.TrimRight(out, "-_")
}
