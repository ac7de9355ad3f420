// Package tracing installs the OpenTelemetry tracer provider for the server.
//
// The HTTP middleware and the submission pipeline both use the global
// provider, so New sets it with otel.SetTracerProvider. When tracing is
// disabled the global provider is left untouched and stays a no-op.
package tracing

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/uireg/internal/config"
	"github.com/vango-dev/uireg/internal/errors"
)

// Provider owns the SDK tracer provider and whatever its exporter writes to.
type Provider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
	closer io.Closer
}

// Option configures New.
type Option func(*options)

type options struct {
	exporter sdktrace.SpanExporter
	stdout   io.Writer
}

// WithExporter replaces the configured exporter. Tests use it with an
// in-memory exporter.
func WithExporter(e sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = e }
}

// WithStdout sets where the stdout exporter writes. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// New builds the provider described by cfg. file is the resolved path for
// the file exporter.
func New(cfg config.TracingConfig, file string, opts ...Option) (*Provider, error) {
	o := options{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName)}, nil
	}

	p := &Provider{}
	exporter := o.exporter
	if exporter == nil {
		var err error
		exporter, p.closer, err = newExporter(cfg.Exporter, file, o.stdout)
		if err != nil {
			return nil, err
		}
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1
	}
	popts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	}
	if exporter != nil {
		popts = append(popts, sdktrace.WithBatcher(exporter))
	}

	p.sdk = sdktrace.NewTracerProvider(popts...)
	p.tracer = p.sdk.Tracer(cfg.ServiceName)
	otel.SetTracerProvider(p.sdk)
	return p, nil
}

func newExporter(kind, file string, stdout io.Writer) (sdktrace.SpanExporter, io.Closer, error) {
	switch kind {
	case "none":
		return nil, nil, nil
	case "", "stdout":
		e, err := stdouttrace.New(stdouttrace.WithWriter(stdout))
		if err != nil {
			return nil, nil, errors.New("E108").Wrap(err)
		}
		return e, nil, nil
	case "file":
		if file == "" {
			return nil, nil, errors.New("E108").WithDetail("tracing.file is required for the file exporter")
		}
		if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
			return nil, nil, errors.New("E108").Wrap(err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, errors.New("E108").Wrap(err)
		}
		e, err := stdouttrace.New(stdouttrace.WithWriter(f))
		if err != nil {
			f.Close()
			return nil, nil, errors.New("E108").Wrap(err)
		}
		return e, f, nil
	default:
		return nil, nil, errors.New("E108").WithDetailf("Unknown tracing exporter %q", kind)
	}
}

// Tracer returns the provider's tracer. It is a no-op tracer when tracing
// is disabled.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether spans are recorded.
func (p *Provider) Enabled() bool {
	return p.sdk != nil
}

// Shutdown flushes pending spans and closes the exporter's file.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	err := p.sdk.Shutdown(ctx)
	if p.closer != nil {
		if cerr := p.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
