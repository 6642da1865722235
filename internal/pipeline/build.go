package pipeline

import (
	"context"
	"fmt"
)

type BuildStepSpec struct {
	// Image references an existing image and is used when no build is configured.
	Image string
	Build *BuildContext
}

type BuildStepExecutor struct {
	images ImageService
	options
}

func NewBuildStepExecutor(images ImageService, opts ...Option) *BuildStepExecutor {
	return &BuildStepExecutor{
		images:  images,
		options: newOptions(opts),
	}
}

func (e *BuildStepExecutor) Execute(ctx context.Context, spec BuildStepSpec, pipelineCtx PipelineContext) (PipelineContext, error) {
	logger := e.logger.WithValues("pipeline", pipelineCtx.PipelineName)

	switch {
	case spec.Build != nil:
		if len(spec.Build.Tags) == 0 {
			return pipelineCtx, NewErrInvalidSpec("image build requires at least one tag")
		}

		startedAt := e.now()
		logger.Info("build image", "context", spec.Build.ContextDir, "dockerfile", spec.Build.Dockerfile, "tags", spec.Build.Tags)
		ref, err := e.images.BuildImage(ctx, *spec.Build)
		if err != nil {
			return pipelineCtx, fmt.Errorf("failed to build image: %w", err)
		}

		logger.Info("image built", "image", ref.String(), "id", ref.ID, "duration", e.now().Sub(startedAt))
		return pipelineCtx.WithBuiltImage(ref), nil
	case spec.Image != "":
		logger.V(1).Info("use existing image", "image", spec.Image)
		return pipelineCtx.WithBuiltImage(ImageRef{Name: spec.Image}), nil
	default:
		logger.V(1).Info("no image configured, continue without built image")
		return pipelineCtx, nil
	}
}
