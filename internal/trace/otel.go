package trace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/your-org/promptchain/pkg/chain"
)

// OTelRuntime stores initialized tracer and shutdown hook.
type OTelRuntime struct {
	Tracer   oteltrace.Tracer
	Shutdown func(context.Context) error
}

// SetupOTelFromEnv initializes OpenTelemetry when OTEL_ENABLED=true. Spans go
// to OTEL_ENDPOINT over OTLP/gRPC, or to stdout when no endpoint is set.
func SetupOTelFromEnv(serviceName string) (OTelRuntime, error) {
	noop := OTelRuntime{
		Tracer:   otel.Tracer(serviceName),
		Shutdown: func(context.Context) error { return nil },
	}

	if !envBool("OTEL_ENABLED") {
		return noop, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
		),
	)
	if err != nil {
		return OTelRuntime{}, fmt.Errorf("otel resource: %w", err)
	}

	var exp sdktrace.SpanExporter
	endpoint := strings.TrimSpace(os.Getenv("OTEL_ENDPOINT"))
	if endpoint != "" {
		exp, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return OTelRuntime{}, fmt.Errorf("otel otlp exporter: %w", err)
		}
	} else {
		exp, err = stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return OTelRuntime{}, fmt.Errorf("otel stdout exporter: %w", err)
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return OTelRuntime{
		Tracer:   tp.Tracer(serviceName),
		Shutdown: tp.Shutdown,
	}, nil
}

func envBool(key string) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

// StartRunSpan opens the parent span for one chain run.
func StartRunSpan(ctx context.Context, tracer oteltrace.Tracer, chainName, runID string) (context.Context, oteltrace.Span) {
	return tracer.Start(ctx, "chain.run", oteltrace.WithAttributes(
		attribute.String("chain.name", chainName),
		attribute.String("chain.run_id", runID),
	))
}

type stepSpanKey struct{}

// SpanObserver opens one span per model call.
type SpanObserver struct {
	Tracer oteltrace.Tracer
}

func (o SpanObserver) BeforeStep(ctx context.Context, info chain.StepInfo) context.Context {
	ctx, span := o.Tracer.Start(ctx, "chain.step", oteltrace.WithAttributes(
		attribute.String("chain.name", info.Chain),
		attribute.Int("chain.step", info.Step),
		attribute.Int("chain.steps_total", info.Total),
		attribute.String("chain.role", info.Role),
	))
	return context.WithValue(ctx, stepSpanKey{}, span)
}

func (o SpanObserver) AfterStep(ctx context.Context, ev chain.StepEvent) {
	span, ok := ctx.Value(stepSpanKey{}).(oteltrace.Span)
	if !ok {
		// Resolution failures happen before BeforeStep; note them on the run span.
		if ev.Err != nil {
			oteltrace.SpanFromContext(ctx).AddEvent("chain.step.unresolved", oteltrace.WithAttributes(
				attribute.Int("chain.step", ev.Step),
				attribute.String("error", ev.Err.Error()),
			))
		}
		return
	}
	defer span.End()

	if ev.Record != nil {
		span.SetAttributes(attribute.Int("chain.tokens", ev.Record.Tokens))
	}
	if ev.Warning != nil {
		span.AddEvent("chain.step.unparsed_json", oteltrace.WithAttributes(attribute.String("warning", ev.Warning.Error())))
	}
	if ev.Err != nil {
		var mie *chain.ModelInvocationError
		if errors.As(ev.Err, &mie) {
			span.RecordError(mie.Err)
		} else {
			span.RecordError(ev.Err)
		}
		span.SetStatus(codes.Error, ev.Err.Error())
	}
}
