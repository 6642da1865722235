package otelsetup

import (
	"context"
	"crypto/tls"
	"errors"

	"github.com/docker/go-connections/tlsconfig"
	"github.com/spf13/pflag"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

type Options struct {
	Endpoint    string
	Insecure    bool
	Stdout      bool
	ServiceName string
	// ServiceVersion and Command are set by the cli before Build.
	ServiceVersion     string
	Command            string
	ResourceAttributes map[string]string
	CAFile             string
	CertFile           string
	KeyFile            string
}

func DefaultOptions() *Options {
	return &Options{
		ServiceName: "stackpipe",
	}
}

func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Endpoint, "otel-endpoint", o.Endpoint, "OpenTelemetry gRPC collector endpoint. Traces, metrics and logs are exported if set.")
	fs.BoolVar(&o.Insecure, "otel-insecure", o.Insecure, "Disable TLS for the collector connection.")
	fs.BoolVar(&o.Stdout, "otel-stdout", o.Stdout, "Print traces, metrics and logs to stdout.")
	fs.StringVar(&o.ServiceName, "otel-service-name", o.ServiceName, "Service name reported to the collector.")
	fs.StringToStringVar(&o.ResourceAttributes, "otel-resource-attributes", o.ResourceAttributes, "Additional resource attributes, e.g. ci.pipeline.id=42,vcs.ref=main.")
	fs.StringVar(&o.CAFile, "otel-tlscacert", "", "Trust collector certs signed only by this CA.")
	fs.StringVar(&o.CertFile, "otel-tlscert", "", "Client certificate for the collector connection.")
	fs.StringVar(&o.KeyFile, "otel-tlskey", "", "Client key for the collector connection.")
}

// Enabled reports whether any exporter is configured.
func (o *Options) Enabled() bool {
	return o.Endpoint != "" || o.Stdout
}

func (o *Options) getTLSConfig() (*tls.Config, error) {
	if o.CAFile == "" && o.CertFile == "" {
		return &tls.Config{MinVersion: tls.VersionTLS12}, nil
	}

	return tlsconfig.Client(tlsconfig.Options{
		CAFile:   o.CAFile,
		CertFile: o.CertFile,
		KeyFile:  o.KeyFile,
	})
}

// Providers bundles the sdk providers built from the options. A nil provider
// means nothing is exported for that signal.
type Providers struct {
	Tracer *trace.TracerProvider
	Meter  *metric.MeterProvider
	Logger *sdklog.LoggerProvider
}

func (o *Options) Build(ctx context.Context) (*Providers, error) {
	p := &Providers{}
	if !o.Enabled() {
		return p, nil
	}

	var err error
	if p.Tracer, err = o.BuildTraceProvider(ctx); err != nil {
		return nil, err
	}

	if p.Meter, err = o.BuildMeterProvider(ctx); err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	if p.Logger, err = o.BuildLoggerProvider(ctx); err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	return p, nil
}

// Shutdown flushes and stops all providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}

	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}

	if p.Logger != nil {
		errs = append(errs, p.Logger.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
