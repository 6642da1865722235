package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
)

const (
	DefaultLogTail        = 1000
	failureLogTimeFormat  = "20060102-150405"
	failureLogFilePattern = "failure-logs-%s.log"
)

type FailureStepSpec struct {
	AdditionalTags     []string
	SaveFailureLogsDir string
	Stack              *StackSpec
	LogServices        []string
	LogTail            int
	AfterFailure       Hook
}

type FailureStepExecutor struct {
	images ImageService
	stacks StackService
	options
}

func NewFailureStepExecutor(images ImageService, stacks StackService, opts ...Option) *FailureStepExecutor {
	return &FailureStepExecutor{
		images:  images,
		stacks:  stacks,
		options: newOptions(opts),
	}
}

// Execute runs the diagnostic consequences of a failed test run.
// Nothing in here may fail the pipeline on its own, errors are logged and dropped.
func (e *FailureStepExecutor) Execute(ctx context.Context, spec FailureStepSpec, pipelineCtx PipelineContext) (PipelineContext, error) {
	logger := e.logger.WithValues("pipeline", pipelineCtx.PipelineName, "path", PathFailure)

	if len(spec.AdditionalTags) > 0 {
		pipelineCtx = e.applyTags(ctx, logger, spec.AdditionalTags, pipelineCtx)
	}

	if spec.SaveFailureLogsDir != "" {
		if path, err := e.captureLogs(ctx, spec); err != nil {
			logger.Error(err, "failed to capture stack logs", "dir", spec.SaveFailureLogsDir)
		} else {
			logger.Info("stack logs captured", "path", path)
		}
	}

	if spec.AfterFailure != nil {
		spec.AfterFailure(ctx)
	}

	return pipelineCtx, nil
}

func (e *FailureStepExecutor) applyTags(ctx context.Context, logger logr.Logger, tags []string, pipelineCtx PipelineContext) PipelineContext {
	if pipelineCtx.BuiltImage == nil {
		logger.Error(ErrNoBuiltImage, "skip failure tags", "tags", tags)
		return pipelineCtx
	}

	logger.Info("apply tags", "image", pipelineCtx.BuiltImage.String(), "tags", tags)
	if err := e.images.TagImage(ctx, *pipelineCtx.BuiltImage, tags); err != nil {
		logger.Error(err, "failed to apply failure tags", "tags", tags)
		return pipelineCtx
	}

	return pipelineCtx.WithAppliedTags(tags...)
}

func (e *FailureStepExecutor) captureLogs(ctx context.Context, spec FailureStepSpec) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during log capture: %v", r)
		}
	}()

	if spec.Stack == nil {
		return "", NewErrInvalidSpec("log capture requires a stack")
	}

	if e.stacks == nil {
		return "", NewErrInvalidSpec("log capture requires a stack service")
	}

	tail := spec.LogTail
	if tail <= 0 {
		tail = DefaultLogTail
	}

	logs, err := e.stacks.CaptureLogs(ctx, spec.Stack.ProjectName, LogsConfig{
		Services: spec.LogServices,
		Tail:     tail,
	})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(spec.SaveFailureLogsDir, 0755); err != nil {
		return "", err
	}

	path = filepath.Join(spec.SaveFailureLogsDir, fmt.Sprintf(failureLogFilePattern, e.now().Format(failureLogTimeFormat)))
	if err := os.WriteFile(path, []byte(logs), 0644); err != nil {
		return "", err
	}

	return path, nil
}
