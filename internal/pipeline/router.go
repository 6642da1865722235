package pipeline

import (
	"context"
)

type Path string

var (
	PathNone    Path = "none"
	PathSuccess Path = "success"
	PathFailure Path = "failure"
)

// Route selects the path for a test result. A missing result means no decision.
func Route(result *TestResult) Path {
	switch {
	case result == nil:
		return PathNone
	case result.Success:
		return PathSuccess
	default:
		return PathFailure
	}
}

type ConditionalExecutor struct {
	success *SuccessStepExecutor
	failure *FailureStepExecutor
	options
}

func NewConditionalExecutor(success *SuccessStepExecutor, failure *FailureStepExecutor, opts ...Option) *ConditionalExecutor {
	return &ConditionalExecutor{
		success: success,
		failure: failure,
		options: newOptions(opts),
	}
}

func (e *ConditionalExecutor) Execute(ctx context.Context, onSuccess SuccessStepSpec, onFailure FailureStepSpec, pipelineCtx PipelineContext) (PipelineContext, error) {
	switch Route(pipelineCtx.TestResult) {
	case PathSuccess:
		return e.success.Execute(ctx, onSuccess, pipelineCtx)
	case PathFailure:
		return e.failure.Execute(ctx, onFailure, pipelineCtx)
	default:
		e.logger.Info("no test result available, skip conditional steps", "pipeline", pipelineCtx.PipelineName)
		return pipelineCtx, nil
	}
}
