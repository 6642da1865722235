package pipeline

import (
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const otelName = "github.com/raffis/stackpipe/internal/pipeline"

type options struct {
	logger logr.Logger
	now    func() time.Time
	tracer trace.Tracer
	meter  metric.Meter
}

type Option func(*options)

func WithLogger(logger logr.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: logr.Discard(),
		now:    time.Now,
		tracer: tracenoop.NewTracerProvider().Tracer(otelName),
		meter:  metricnoop.NewMeterProvider().Meter(otelName),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
