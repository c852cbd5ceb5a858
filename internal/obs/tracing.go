package obs

import (
	"context"
	"fmt"
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
)

const checkoutTracer = "toko-pricing/checkout"

// TracingConfig controls tracer provider initialisation.
type TracingConfig struct {
	ServiceName   string
	Endpoint      string
	Exporter      string
	SamplingRatio float64
	Environment   string
	// CartStore and Currency are attached to every span's resource so traces
	// from memory and Redis deployments can be told apart.
	CartStore string
	Currency  string
}

// InitTracer installs the global tracer provider and W3C propagators and
// returns its shutdown function. A sampled parent always wins.
func InitTracer(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}
	ratio := cfg.SamplingRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch kind := strings.ToLower(strings.TrimSpace(cfg.Exporter)); kind {
	case "", "otlp":
		var opts []otlptracehttp.Option
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", kind)
	}
}

func newResource(ctx context.Context, cfg TracingConfig) (*resource.Resource, error) {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "toko-pricing"
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(service),
		semconv.DeploymentEnvironmentKey.String(cfg.Environment),
	}
	if cfg.CartStore != "" {
		attrs = append(attrs, attribute.String("toko.cart_store", cfg.CartStore))
	}
	if cfg.Currency != "" {
		attrs = append(attrs, attribute.String("toko.currency", cfg.Currency))
	}
	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attrs...),
	)
}

// StartCheckoutSpan opens a span for one checkout stage (finalize, submit)
// on cartID. The submitter and breaker see it through the returned context.
func StartCheckoutSpan(ctx context.Context, stage, cartID string) (context.Context, trace.Span) {
	return otel.Tracer(checkoutTracer).Start(ctx, "checkout."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cart.id", cartID),
			attribute.String("checkout.stage", stage),
		),
	)
}

// EndCheckoutSpan records the stage result and ends span. Errors mark the
// span failed.
func EndCheckoutSpan(span trace.Span, result string, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(append(attrs, attribute.String("checkout.result", result))...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	span.End()
}
