// Package logging builds the process logger and a chain observer that logs
// each step.
package logging

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/promptchain/internal/state"
	"github.com/your-org/promptchain/pkg/chain"
)

// New builds a logger. format is "json" or "console"; level is any zapcore
// level name.
func New(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Observer logs step boundaries. Prompts and responses are logged at debug
// level only.
type Observer struct {
	Logger *zap.Logger
}

func (o Observer) BeforeStep(ctx context.Context, info chain.StepInfo) context.Context {
	if ce := o.Logger.Check(zapcore.DebugLevel, "step started"); ce != nil {
		ce.Write(append(stepFields(ctx, info), zap.String("prompt", info.Prompt))...)
	}
	return ctx
}

func (o Observer) AfterStep(ctx context.Context, ev chain.StepEvent) {
	fields := append(stepFields(ctx, ev.StepInfo), zap.Int64("duration_ms", ev.Duration.Milliseconds()))
	switch {
	case ev.Err != nil:
		o.Logger.Error("step failed", append(fields, zap.Error(ev.Err))...)
		return
	case ev.Warning != nil:
		o.Logger.Warn("step response looked like JSON but did not parse", append(fields, zap.Error(ev.Warning))...)
	}
	if ev.Record == nil {
		return
	}
	o.Logger.Info("step finished", append(fields, zap.Int("tokens", ev.Record.Tokens))...)
	if ce := o.Logger.Check(zapcore.DebugLevel, "step response"); ce != nil {
		ce.Write(append(fields, zap.String("response", ev.Record.Response.String()))...)
	}
}

func stepFields(ctx context.Context, info chain.StepInfo) []zap.Field {
	fields := []zap.Field{
		zap.String("chain", info.Chain),
		zap.Int("step", info.Step),
		zap.Int("of", info.Total),
		zap.String("role", info.Role),
	}
	if s, ok := state.FromContext(ctx); ok && s.RunID != "" {
		fields = append(fields, zap.String("trace_id", s.RunID))
	}
	return fields
}
