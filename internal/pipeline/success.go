package pipeline

import (
	"context"
	"fmt"
)

type SuccessStepSpec struct {
	AdditionalTags []string
	Save           *SaveTarget
	Publish        *PublishTarget
	AfterSuccess   Hook
}

type SuccessStepExecutor struct {
	images ImageService
	options
}

func NewSuccessStepExecutor(images ImageService, opts ...Option) *SuccessStepExecutor {
	return &SuccessStepExecutor{
		images:  images,
		options: newOptions(opts),
	}
}

// Execute ships a verified image: tag, save, publish and the after hook, in that order.
// Unlike the failure path every error here is fatal.
func (e *SuccessStepExecutor) Execute(ctx context.Context, spec SuccessStepSpec, pipelineCtx PipelineContext) (PipelineContext, error) {
	logger := e.logger.WithValues("pipeline", pipelineCtx.PipelineName, "path", PathSuccess)

	if len(spec.AdditionalTags) > 0 {
		if pipelineCtx.BuiltImage == nil {
			return pipelineCtx, fmt.Errorf("can not apply tags %v: %w", spec.AdditionalTags, ErrNoBuiltImage)
		}

		logger.Info("apply tags", "image", pipelineCtx.BuiltImage.String(), "tags", spec.AdditionalTags)
		if err := e.images.TagImage(ctx, *pipelineCtx.BuiltImage, spec.AdditionalTags); err != nil {
			return pipelineCtx, fmt.Errorf("failed to tag image: %w", err)
		}

		pipelineCtx = pipelineCtx.WithAppliedTags(spec.AdditionalTags...)
	}

	if spec.Save != nil {
		if pipelineCtx.BuiltImage == nil {
			return pipelineCtx, fmt.Errorf("can not save image to %s: %w", spec.Save.Path, ErrNoBuiltImage)
		}

		logger.Info("save image", "image", pipelineCtx.BuiltImage.String(), "path", spec.Save.Path, "compression", spec.Save.Compression)
		if err := e.images.SaveImage(ctx, *pipelineCtx.BuiltImage, *spec.Save); err != nil {
			return pipelineCtx, fmt.Errorf("failed to save image: %w", err)
		}
	}

	if spec.Publish != nil {
		if pipelineCtx.BuiltImage == nil {
			return pipelineCtx, fmt.Errorf("can not publish image: %w", ErrNoBuiltImage)
		}

		logger.Info("publish image", "image", pipelineCtx.BuiltImage.String(), "registry", spec.Publish.Registry, "tags", spec.Publish.Tags)
		if err := e.images.PublishImage(ctx, *pipelineCtx.BuiltImage, *spec.Publish); err != nil {
			return pipelineCtx, fmt.Errorf("failed to publish image: %w", err)
		}
	}

	if spec.AfterSuccess != nil {
		spec.AfterSuccess(ctx)
	}

	return pipelineCtx, nil
}
