package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"git.home.luguber.info/inful/stepd/internal/version"
)

const instrumentationName = "git.home.luguber.info/inful/stepd"

// TracingOptions configures Setup.
type TracingOptions struct {
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

// Setup installs a global OTLP/HTTP tracer provider.
//
// Tracing is opt-in: with an empty endpoint Setup registers nothing and
// returns a no-op shutdown. The returned shutdown flushes pending spans and
// should be deferred by the caller.
func Setup(ctx context.Context, opts TracingOptions) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if opts.Endpoint == "" {
		return noop, nil
	}

	var exporterOpt otlptracehttp.Option
	if strings.Contains(opts.Endpoint, "://") {
		exporterOpt = otlptracehttp.WithEndpointURL(opts.Endpoint)
	} else {
		exporterOpt = otlptracehttp.WithEndpoint(opts.Endpoint)
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpt)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(version.Version),
		),
	)
	if err != nil {
		return noop, err
	}

	sampler := sdktrace.AlwaysSample()
	if opts.SampleRatio > 0 && opts.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// Tracer returns the stepd tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartStorageSpan opens a span around a record store operation.
func StartStorageSpan(ctx context.Context, operation, backend string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "record."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("storage.operation", operation),
			attribute.String("storage.backend", backend),
		),
	)
}

// StartCommandSpan opens a span around a tracker command.
func StartCommandSpan(ctx context.Context, command string) (context.Context, trace.Span) {
	return Tracer().Start(WithCommand(ctx, command), "tracker."+command,
		trace.WithAttributes(attribute.String("stepd.command", command)),
	)
}

// EndSpan records err, if any, and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
