// Package providers keeps the set of model providers a process can call.
package providers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/your-org/promptchain/internal/config"
	"github.com/your-org/promptchain/pkg/adapters"
	"github.com/your-org/promptchain/pkg/adapters/anthropic"
	"github.com/your-org/promptchain/pkg/adapters/echo"
	"github.com/your-org/promptchain/pkg/adapters/gemini"
	"github.com/your-org/promptchain/pkg/adapters/ollama"
	"github.com/your-org/promptchain/pkg/adapters/openai"
)

var (
	ErrEmptyProviderName = errors.New("provider name is empty")
	ErrDuplicateProvider = errors.New("provider already registered")
	ErrUnknownProvider   = errors.New("unknown provider")
)

// Registry stores providers by lower-case name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]adapters.Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]adapters.Provider)}
}

// FromConfig registers every built-in provider. Providers without an API key
// are still registered and fail with adapters.ErrMissingAPIKey when called.
func FromConfig(cfg config.Config, httpClient *http.Client) *Registry {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	r := NewRegistry()
	for _, p := range []adapters.Provider{
		echo.NewClient(""),
		ollama.NewClient(httpClient, cfg.OllamaBaseURL),
		anthropic.NewClient(cfg.AnthropicAPIKey, httpClient, cfg.AnthropicBaseURL),
		openai.NewClient(cfg.OpenAIAPIKey, httpClient, cfg.OpenAIBaseURL),
		gemini.NewClient(cfg.GeminiAPIKey, httpClient, cfg.GeminiBaseURL),
	} {
		_ = r.Register(p)
	}
	return r
}

func (r *Registry) Register(p adapters.Provider) error {
	if p == nil {
		return adapters.ErrNilProvider
	}
	name := strings.ToLower(strings.TrimSpace(p.Name()))
	if name == "" {
		return ErrEmptyProviderName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, name)
	}
	r.providers[name] = p
	return nil
}

// Replace registers p, overwriting any provider with the same name.
func (r *Registry) Replace(p adapters.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(p.Name())] = p
}

func (r *Registry) Get(name string) (adapters.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Resolve is Get with an error naming the registered alternatives.
func (r *Registry) Resolve(name string) (adapters.Provider, error) {
	if p, ok := r.Get(name); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w %q (have %s)", ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
