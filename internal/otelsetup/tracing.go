package otelsetup

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// BuildTraceProvider creates a TracerProvider from options.
// When no export is configured (no endpoint, no stdout), returns (nil, nil).
func (o *Options) BuildTraceProvider(ctx context.Context) (*trace.TracerProvider, error) {
	var providerOpts []trace.TracerProviderOption

	if o.Endpoint != "" {
		grpcOptions := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(o.Endpoint),
		}

		if o.Insecure {
			grpcOptions = append(grpcOptions, otlptracegrpc.WithInsecure())
		} else {
			tlso, err := o.getTLSConfig()
			if err != nil {
				return nil, err
			}

			grpcOptions = append(grpcOptions, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlso)))
		}

		exporter, err := otlptracegrpc.New(ctx, grpcOptions...)
		if err != nil {
			return nil, err
		}

		providerOpts = append(providerOpts, trace.WithBatcher(exporter))
	}

	if o.Stdout {
		exporter, err := stdouttrace.New()
		if err != nil {
			return nil, err
		}

		providerOpts = append(providerOpts, trace.WithBatcher(exporter))
	}

	if len(providerOpts) == 0 {
		return nil, nil
	}

	providerOpts = append(providerOpts,
		trace.WithResource(o.resource()),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(1))),
	)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
		),
	)

	return trace.NewTracerProvider(providerOpts...), nil
}
