// Package otel wires OpenTelemetry into the gateway: providers, an
// instrumented ledger database and tracing decorators around every port.
package otel

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// Config holds OpenTelemetry provider configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Gateway        domain.Environment // APP_ENVIRONMENT the gateway serves
	Environment    string             // deployment.environment resource attribute
	Exporter       string             // "stdout", "otlp" or "none"
	Insecure       bool               // use HTTP instead of HTTPS for OTLP
	SampleRatio    float64            // share of root traces kept, (0, 1]
}

// deployments names the deployment environment each gateway environment
// runs in by default.
var deployments = map[domain.Environment]string{
	domain.EnvironmentDev:  "development",
	domain.EnvironmentQA:   "qa",
	domain.EnvironmentProd: "production",
}

// ConfigFromEnv builds Config for gateway from OTEL_* variables. The
// deployment environment follows the gateway environment unless
// OTEL_ENVIRONMENT says otherwise, and production samples a tenth of root
// traces by default.
func ConfigFromEnv(gateway domain.Environment) Config {
	env := envOrDefault("OTEL_ENVIRONMENT", deploymentFor(gateway))

	ratio := 1.0
	if gateway == domain.EnvironmentProd {
		ratio = 0.1
	}
	if v, err := strconv.ParseFloat(os.Getenv("OTEL_TRACES_SAMPLER_ARG"), 64); err == nil && v > 0 && v <= 1 {
		ratio = v
	}

	return Config{
		ServiceName:    envOrDefault("OTEL_SERVICE_NAME", "dmgateway"),
		ServiceVersion: envOrDefault("OTEL_SERVICE_VERSION", "0.1.0"),
		Gateway:        gateway,
		Environment:    env,
		Exporter:       envOrDefault("OTEL_EXPORTER", "stdout"),
		Insecure:       env == "development",
		SampleRatio:    ratio,
	}
}

func deploymentFor(gateway domain.Environment) string {
	if d, ok := deployments[gateway]; ok {
		return d
	}
	return "development"
}

// Providers holds initialized OTel providers and their shutdown function.
type Providers struct {
	Resource *resource.Resource
	Shutdown func(ctx context.Context) error
}

// Setup initializes TracerProvider and MeterProvider based on Config.
// It registers them globally and returns a Providers whose Shutdown must
// be called on application exit to flush pending telemetry. The "none"
// exporter installs providers that record nothing.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("creating tracer provider: %w", err)
	}

	mp, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("creating meter provider: %w", err)
	}

	// Register globally so any package can obtain a tracer via otel.Tracer("name").
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		var result *multierror.Error
		if err := tp.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("tracer shutdown: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("meter shutdown: %w", err))
		}
		return result.ErrorOrNil()
	}

	return &Providers{Resource: res, Shutdown: shutdown}, nil
}

// newResource describes the gateway process. Spans carry the gateway
// environment and its ten-digit ID prefix, so traces from a deployment
// pointed at the wrong numbering range stand out.
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	}
	if cfg.Gateway != "" {
		ids, err := domain.NewIDFormatValidator(cfg.Gateway)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs,
			attribute.String("dmgateway.environment", string(cfg.Gateway)),
			attribute.String("dmgateway.id_prefix", ids.TenDigitPrefix()),
		)
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

// sampler keeps every trace whose parent was sampled, and cfg.SampleRatio
// of new root traces. A zero Config samples everything.
func sampler(cfg Config) trace.Sampler {
	if cfg.SampleRatio <= 0 || cfg.SampleRatio >= 1 {
		return trace.ParentBased(trace.AlwaysSample())
	}
	return trace.ParentBased(trace.TraceIDRatioBased(cfg.SampleRatio))
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "otlp":
		var opts []otlptracehttp.Option
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		return trace.NewTracerProvider(trace.WithResource(res), trace.WithSampler(sampler(cfg))), nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %q (use \"stdout\", \"otlp\" or \"none\")", cfg.Exporter)
	}

	if err != nil {
		return nil, err
	}

	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(sampler(cfg)),
		trace.WithBatcher(exporter),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	var exporter metric.Exporter
	var err error

	switch cfg.Exporter {
	case "otlp":
		var opts []otlpmetrichttp.Option
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	case "stdout":
		exporter, err = stdoutmetric.New()
	case "none":
		return metric.NewMeterProvider(metric.WithResource(res)), nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %q (use \"stdout\", \"otlp\" or \"none\")", cfg.Exporter)
	}

	if err != nil {
		return nil, err
	}

	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter)),
	), nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
