package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config is process-level runtime configuration.
type Config struct {
	Provider string
	Model    string

	AnthropicAPIKey  string
	AnthropicBaseURL string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	GeminiBaseURL    string
	OllamaBaseURL    string

	TraceDir     string
	TraceDB      string
	AuditLogPath string

	// ChainsDir bounds the chain files the HTTP server may run.
	ChainsDir string

	RequestTimeout time.Duration

	LogLevel  string
	LogFormat string

	MetricsEnabled bool
	MetricsAddr    string
	ServerAddr     string

	// TLS for the HTTP and metrics servers; a CA file enables client-cert auth.
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string

	USDPer1KTokens float64
}

// Defaults returns the baseline configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Provider:       "echo",
		OllamaBaseURL:  "http://localhost:11434",
		TraceDir:       "traces",
		ChainsDir:      "configs/chains",
		RequestTimeout: 60 * time.Second,
		LogLevel:       "info",
		LogFormat:      "console",
		MetricsAddr:    ":9090",
		ServerAddr:     ":8080",
	}
}

// FromEnv loads config from the process environment with safe defaults.
func FromEnv() Config {
	cfg, _ := fromLookup(os.Getenv)
	return cfg
}

// Load reads envFile (if it exists) and then the process environment. Real
// environment variables win over the file.
func Load(envFile string) (Config, error) {
	file := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			file = vals
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("config: read %q: %w", envFile, err)
		}
	}
	return fromLookup(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return file[key]
	})
}

func fromLookup(get func(string) string) (Config, error) {
	cfg := Defaults()
	var errs []error

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(get(key)); v != "" {
			*dst = v
		}
	}
	str("PROMPTCHAIN_PROVIDER", &cfg.Provider)
	str("PROMPTCHAIN_MODEL", &cfg.Model)
	str("ANTHROPIC_API_KEY", &cfg.AnthropicAPIKey)
	str("ANTHROPIC_BASE_URL", &cfg.AnthropicBaseURL)
	str("OPENAI_API_KEY", &cfg.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &cfg.OpenAIBaseURL)
	str("GEMINI_API_KEY", &cfg.GeminiAPIKey)
	str("GEMINI_BASE_URL", &cfg.GeminiBaseURL)
	str("OLLAMA_BASE_URL", &cfg.OllamaBaseURL)
	str("TRACE_DIR", &cfg.TraceDir)
	str("TRACE_DB", &cfg.TraceDB)
	str("AUDIT_LOG_PATH", &cfg.AuditLogPath)
	str("CHAINS_DIR", &cfg.ChainsDir)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("METRICS_ADDR", &cfg.MetricsAddr)
	str("SERVER_ADDR", &cfg.ServerAddr)
	str("TLS_CERT_FILE", &cfg.TLSCertFile)
	str("TLS_KEY_FILE", &cfg.TLSKeyFile)
	str("TLS_CA_FILE", &cfg.TLSCAFile)

	if v := get("REQUEST_TIMEOUT"); v != "" {
		if d, err := cast.ToDurationE(v); err == nil && d > 0 {
			cfg.RequestTimeout = d
		} else {
			errs = append(errs, fmt.Errorf("config: REQUEST_TIMEOUT %q is not a positive duration", v))
		}
	}
	if v := get("METRICS_ENABLED"); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			cfg.MetricsEnabled = b
		} else {
			errs = append(errs, fmt.Errorf("config: METRICS_ENABLED %q: %w", v, err))
		}
	}
	if v := get("USD_PER_1K_TOKENS"); v != "" {
		if f, err := cast.ToFloat64E(v); err == nil && f >= 0 {
			cfg.USDPer1KTokens = f
		} else {
			errs = append(errs, fmt.Errorf("config: USD_PER_1K_TOKENS %q is not a non-negative number", v))
		}
	}

	cfg.Provider = strings.ToLower(cfg.Provider)
	return cfg, errors.Join(errs...)
}
