// Package observability bootstraps OpenTelemetry tracing and metrics for the
// console. It is disabled unless explicitly enabled with an OTLP endpoint, in
// which case spans and HTTP client metrics are exported over grpc or
// http/protobuf.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/alexsjones/agentconsole/internal/settings"
)

const (
	instrumentationName = "agentconsole"
	serviceVersion      = "dev"
)

// Provider holds the tracer used by the console and the exporter shutdown.
type Provider struct {
	enabled  bool
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Disabled returns a provider backed by the global no-op tracer.
func Disabled() *Provider {
	return &Provider{
		tracer: otel.Tracer(instrumentationName),
	}
}

// Setup installs global tracer and meter providers when cfg enables them.
// Exporter failures are logged and leave telemetry disabled.
func Setup(ctx context.Context, cfg settings.OTelSettings, log logr.Logger) *Provider {
	if !cfg.Enabled {
		return Disabled()
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		log.Info("OTel enabled without an OTLP endpoint, telemetry disabled")
		return Disabled()
	}

	res := buildResource(ctx, cfg.ServiceName, cfg.ResourceAttributes, log)
	tp, mp, err := buildProviders(ctx, newCollector(cfg.Endpoint, strings.ToLower(cfg.Protocol)), res)
	if err != nil {
		log.Error(err, "OTel exporters unavailable, telemetry disabled")
		return Disabled()
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	log.Info("OpenTelemetry enabled", "endpoint", cfg.Endpoint, "protocol", cfg.Protocol)

	return &Provider{
		enabled: true,
		tracer:  tp.Tracer(instrumentationName),
		shutdown: func(ctx context.Context) error {
			return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
		},
	}
}

// Enabled reports whether exporters are installed.
func (p *Provider) Enabled() bool { return p != nil && p.enabled }

// Tracer returns the console tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return otel.Tracer(instrumentationName)
	}
	return p.tracer
}

// Shutdown flushes and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Transport wraps base so outgoing requests carry trace context and are
// measured by the global meter provider.
func Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base)
}

// MarkSpanError records err on span.
func MarkSpanError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func buildResource(ctx context.Context, serviceName, attrsCSV string, log logr.Logger) *resource.Resource {
	if serviceName == "" {
		serviceName = instrumentationName
	}
	kvs := make([]attribute.KeyValue, 0, 4)
	kvs = append(kvs,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)
	for key, val := range ParseResourceAttributes(attrsCSV) {
		kvs = append(kvs, attribute.String(key, val))
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(kvs...),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		log.Error(err, "Building the OTel resource failed, falling back to the default")
		return resource.Default()
	}
	return res
}

// collector is where the exporters send data.
type collector struct {
	host     string
	insecure bool
	overHTTP bool
}

func newCollector(endpoint, protocol string) collector {
	host, insecure := NormalizeEndpoint(endpoint)
	switch protocol {
	case "http/protobuf", "http":
		return collector{host: host, insecure: insecure, overHTTP: true}
	default:
		return collector{host: host, insecure: insecure}
	}
}

func (c collector) spanExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if c.overHTTP {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.host)}
		if c.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(c.host)}
	if c.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func (c collector) metricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	if c.overHTTP {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(c.host)}
		if c.insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(c.host)}
	if c.insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func buildProviders(ctx context.Context, c collector, res *resource.Resource) (*sdktrace.TracerProvider, *sdkmetric.MeterProvider, error) {
	spans, err := c.spanExporter(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("span exporter: %w", err)
	}
	metrics, err := c.metricExporter(ctx)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return nil, nil, fmt.Errorf("metric exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(spans),
	)
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics)),
	)
	return tracerProvider, meterProvider, nil
}

// NormalizeEndpoint turns an OTLP endpoint into the host:port form the
// exporters expect and reports whether TLS should be skipped. Only an
// explicit https:// scheme enables TLS.
func NormalizeEndpoint(endpoint string) (string, bool) {
	trimmed := strings.TrimSpace(endpoint)
	scheme, _, found := strings.Cut(trimmed, "://")
	if !found || (scheme != "http" && scheme != "https") {
		return trimmed, true
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed, true
	}
	return u.Host, scheme == "http"
}

// ParseResourceAttributes reads the OTEL_RESOURCE_ATTRIBUTES form
// "key=value,key=value". Pairs missing a key or a value are dropped.
func ParseResourceAttributes(csv string) map[string]string {
	attrs := make(map[string]string)
	for pair := range strings.SplitSeq(csv, ",") {
		key, val, ok := strings.Cut(pair, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			continue
		}
		attrs[key] = val
	}
	return attrs
}
