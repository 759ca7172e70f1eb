package tracing

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const serviceName = "climate-e2e"

// Config holds tracing configuration
type Config struct {
	Enabled     bool
	Endpoint    string // OTLP gRPC endpoint, e.g. "otel-collector:4317"
	TLSCAPath   string
	TLSInsecure bool
	Version     string
}

// Provider owns the global tracer provider for one CLI run or test binary.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	logger         *logging.Logger
}

// NewProvider installs an OTLP-exporting tracer provider as the global one.
// When tracing is disabled the returned Provider is a no-op and the global
// provider stays untouched.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	logger := logging.GetLogger("tracing")

	if !cfg.Enabled {
		logger.Debug("Tracing disabled")
		return &Provider{logger: logger}, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tracing enabled but endpoint not configured")
	}

	dialCreds, otlpOptions, err := transportOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	otlpOptions = append(otlpOptions,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(dialCreds)),
	)

	exportCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exporter, err := otlptracegrpc.New(exportCtx, otlpOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	p, err := newProvider(exportCtx, cfg.Version, sdktrace.WithBatcher(exporter))
	if err != nil {
		return nil, err
	}
	logger.Info("Tracing initialized with endpoint: %s", cfg.Endpoint)
	return p, nil
}

func transportOptions(cfg Config, logger *logging.Logger) (credentials.TransportCredentials, []otlptracegrpc.Option, error) {
	switch {
	case cfg.TLSInsecure:
		logger.Info("TLS enabled for tracing with certificate verification disabled")
		return credentials.NewTLS(&tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		}), nil, nil

	case cfg.TLSCAPath != "":
		caCert, err := os.ReadFile(cfg.TLSCAPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, nil, fmt.Errorf("failed to append CA certificate to pool")
		}
		logger.Info("TLS enabled for tracing with CA from: %s", cfg.TLSCAPath)
		return credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}), nil, nil

	default:
		return insecure.NewCredentials(), []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}, nil
	}
}

// newProvider builds the SDK provider with the given span processor options and
// makes it global.
func newProvider(ctx context.Context, version string, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return &Provider{tracerProvider: tp, logger: logging.GetLogger("tracing")}, nil
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		p.logger.Error("Error shutting down tracer provider: %v", err)
		return err
	}
	return nil
}

// Tracer returns a named tracer from the global provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// IsEnabled reports whether spans are exported.
func (p *Provider) IsEnabled() bool {
	return p.tracerProvider != nil
}
