package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type Spec struct {
	Name string
	// Tasks overrides the task lookup of the runner for this pipeline.
	Tasks     TaskLookup
	Build     BuildStepSpec
	Test      TestStepSpec
	OnSuccess SuccessStepSpec
	OnFailure FailureStepSpec
}

type Result struct {
	Name      string
	Context   PipelineContext
	Path      Path
	StartedAt time.Time
	EndedAt   time.Time
	Error     error
}

func (r Result) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Failed reports whether the pipeline errored or its tests did not pass.
func (r Result) Failed() bool {
	return r.Error != nil || r.Path != PathSuccess
}

type Runner struct {
	build  *BuildStepExecutor
	test   *TestStepExecutor
	router *ConditionalExecutor
	runs   metric.Int64Counter
	tests  metric.Int64Counter
	opts   []Option
	options
}

func NewRunner(images ImageService, stacks StackService, tasks TaskLookup, opts ...Option) *Runner {
	r := &Runner{
		build: NewBuildStepExecutor(images, opts...),
		test:  NewTestStepExecutor(tasks, opts...),
		router: NewConditionalExecutor(
			NewSuccessStepExecutor(images, opts...),
			NewFailureStepExecutor(images, stacks, opts...),
			opts...,
		),
		opts:    opts,
		options: newOptions(opts),
	}

	var err error
	r.runs, err = r.meter.Int64Counter("stackpipe.pipeline.runs",
		metric.WithDescription("Number of pipeline runs by result path"),
		metric.WithUnit("{run}"))
	if err != nil {
		r.logger.Error(err, "failed to create metric instrument")
		r.runs = metricnoop.Int64Counter{}
	}

	r.tests, err = r.meter.Int64Counter("stackpipe.tests",
		metric.WithDescription("Number of tests by outcome"),
		metric.WithUnit("{test}"))
	if err != nil {
		r.logger.Error(err, "failed to create metric instrument")
		r.tests = metricnoop.Int64Counter{}
	}

	return r
}

// Run executes build, test and the conditional step strictly in order.
// The failure path always completes before a test execution error is returned.
func (r *Runner) Run(ctx context.Context, spec Spec) (PipelineContext, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline", trace.WithAttributes(attribute.String("pipeline", spec.Name)))
	defer span.End()

	pipelineCtx := NewPipelineContext(spec.Name)

	pipelineCtx, err := r.step(ctx, "build", func(ctx context.Context) (PipelineContext, error) {
		return r.build.Execute(ctx, spec.Build, pipelineCtx)
	})
	if err != nil {
		r.record(ctx, span, spec.Name, PathNone, nil, err)
		return pipelineCtx, err
	}

	test := r.test
	if spec.Tasks != nil {
		test = NewTestStepExecutor(spec.Tasks, r.opts...)
	}

	pipelineCtx, testErr := r.step(ctx, "test", func(ctx context.Context) (PipelineContext, error) {
		return test.Execute(ctx, spec.Test, pipelineCtx)
	})
	if pipelineCtx.TestResult == nil {
		r.record(ctx, span, spec.Name, PathNone, nil, testErr)
		return pipelineCtx, testErr
	}

	path := Route(pipelineCtx.TestResult)
	pipelineCtx, routeErr := r.step(ctx, string(path), func(ctx context.Context) (PipelineContext, error) {
		return r.router.Execute(ctx, spec.OnSuccess, spec.OnFailure, pipelineCtx)
	})

	err = errors.Join(testErr, routeErr)
	r.record(ctx, span, spec.Name, path, pipelineCtx.TestResult, err)
	return pipelineCtx, err
}

// RunAll executes independent pipelines concurrently, each with its own context.
// A maxConcurrent of zero or less means no limit.
func (r *Runner) RunAll(ctx context.Context, specs []Spec, maxConcurrent int) []Result {
	results := make([]Result, len(specs))
	wg := new(errgroup.Group)
	if maxConcurrent > 0 {
		wg.SetLimit(maxConcurrent)
	}

	for i, spec := range specs {
		wg.Go(func() error {
			startedAt := r.now()
			pipelineCtx, err := r.Run(ctx, spec)
			results[i] = Result{
				Name:      spec.Name,
				Context:   pipelineCtx,
				Path:      Route(pipelineCtx.TestResult),
				StartedAt: startedAt,
				EndedAt:   r.now(),
				Error:     err,
			}

			return nil
		})
	}

	_ = wg.Wait()
	return results
}

func (r *Runner) step(ctx context.Context, name string, fn func(ctx context.Context) (PipelineContext, error)) (PipelineContext, error) {
	ctx, span := r.tracer.Start(ctx, name)
	defer span.End()

	pipelineCtx, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return pipelineCtx, err
}

func (r *Runner) record(ctx context.Context, span trace.Span, name string, path Path, result *TestResult, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("pipeline", name),
		attribute.String("path", string(path)),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		attrs = append(attrs, attribute.Bool("error", true))
	}

	r.runs.Add(ctx, 1, metric.WithAttributes(attrs...))

	if result == nil {
		return
	}

	for outcome, count := range map[string]int{
		"executed":   result.Executed,
		"failed":     result.FailureCount,
		"skipped":    result.Skipped,
		"up-to-date": result.UpToDate,
	} {
		r.tests.Add(ctx, int64(count), metric.WithAttributes(
			attribute.String("pipeline", name),
			attribute.String("outcome", outcome),
		))
	}
}
