package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/go-logr/logr"
)

type TestStepSpec struct {
	Stack                   *StackSpec
	TestTaskName            string
	Lifecycle               Lifecycle
	DelegateStackManagement bool
	BeforeTest              Hook
	AfterTest               ResultHook
}

func (s TestStepSpec) validate() error {
	if s.TestTaskName == "" {
		return NewErrInvalidSpec("test task name is required")
	}

	if !ShouldDelegateCompose(s.Lifecycle, s.DelegateStackManagement) && s.Stack == nil {
		return NewErrInvalidSpec("a stack is required unless stack management is delegated")
	}

	return nil
}

type TestStepExecutor struct {
	tasks TaskLookup
	options
}

func NewTestStepExecutor(tasks TaskLookup, opts ...Option) *TestStepExecutor {
	return &TestStepExecutor{
		tasks:   tasks,
		options: newOptions(opts),
	}
}

// Execute brings up the stack unless delegated, runs the test task and always tears
// the stack down again. An error raised by the test task itself is returned after
// teardown together with a context which already carries the failed TestResult.
func (e *TestStepExecutor) Execute(ctx context.Context, spec TestStepSpec, pipelineCtx PipelineContext) (PipelineContext, error) {
	if err := spec.validate(); err != nil {
		return pipelineCtx, err
	}

	logger := e.logger.WithValues("pipeline", pipelineCtx.PipelineName, "task", spec.TestTaskName)
	delegate := ShouldDelegateCompose(spec.Lifecycle, spec.DelegateStackManagement)

	task, ok := e.tasks.FindByName(spec.TestTaskName)
	if !ok {
		return pipelineCtx, NewErrTaskNotFound(spec.TestTaskName)
	}

	if spec.Lifecycle == LifecycleMethod && spec.Stack != nil {
		e.configureMethodLifecycle(logger, task, *spec.Stack)
	}

	result, execErr, err := e.run(ctx, logger, spec, task, delegate)
	if err != nil {
		return pipelineCtx, err
	}

	logger.Info("test task finished", "result", result.String())

	if spec.AfterTest != nil {
		spec.AfterTest(ctx, result)
	}

	pipelineCtx = pipelineCtx.WithTestResult(result)
	if execErr != nil {
		return pipelineCtx, NewErrTestExecution(task.Name(), execErr)
	}

	return pipelineCtx, nil
}

func (e *TestStepExecutor) run(ctx context.Context, logger logr.Logger, spec TestStepSpec, task Task, delegate bool) (result TestResult, execErr error, err error) {
	if spec.BeforeTest != nil {
		spec.BeforeTest(ctx)
	}

	if delegate {
		logger.Info("stack management is delegated, skip compose up", "lifecycle", spec.Lifecycle)
	} else {
		if err := e.composeUp(ctx, logger, *spec.Stack); err != nil {
			return result, nil, err
		}

		defer e.composeDown(ctx, logger, *spec.Stack)
	}

	startedAt := e.now()
	execErr = e.executeTask(ctx, task)
	logger.V(1).Info("test task executed", "duration", e.now().Sub(startedAt), "err", execErr)

	return resultFromTask(task, execErr), execErr, nil
}

func (e *TestStepExecutor) executeTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task `%s`: %v\n trace:\n%s", task.Name(), r, debug.Stack())
		}
	}()

	return e.tasks.Execute(ctx, task)
}

func resultFromTask(task Task, execErr error) TestResult {
	outcome := TaskOutcome{Executed: 1}
	if reporter, ok := task.(OutcomeReporter); ok {
		outcome = reporter.Outcome()
	}

	switch {
	case execErr != nil:
		return newExecutionErrorResult(outcome)
	case outcome.Failed > 0:
		return NewFailureResult(outcome.Executed, outcome.UpToDate, outcome.Skipped, outcome.Failed)
	default:
		return NewSuccessResult(outcome.Executed, outcome.UpToDate, outcome.Skipped)
	}
}

func (e *TestStepExecutor) composeUp(ctx context.Context, logger logr.Logger, stack StackSpec) error {
	name := ComposeUpTaskName(stack.Name)
	task, ok := e.tasks.FindByName(name)
	if !ok {
		return NewErrInvalidSpec(fmt.Sprintf("compose up task `%s` not found for stack `%s`", name, stack.Name))
	}

	logger.Info("start stack", "stack", stack.Name, "project", stack.ProjectName)
	if err := e.tasks.Execute(ctx, task); err != nil {
		return fmt.Errorf("%w: stack `%s`: %w", ErrComposeUp, stack.Name, err)
	}

	return nil
}

// composeDown never fails, a broken teardown must not hide the test outcome.
func (e *TestStepExecutor) composeDown(ctx context.Context, logger logr.Logger, stack StackSpec) {
	name := ComposeDownTaskName(stack.Name)
	task, ok := e.tasks.FindByName(name)
	if !ok {
		logger.Error(NewErrTaskNotFound(name), "skip stack teardown", "stack", stack.Name)
		return
	}

	ctx = context.WithoutCancel(ctx)
	logger.Info("stop stack", "stack", stack.Name, "project", stack.ProjectName)
	if err := e.tasks.Execute(ctx, task); err != nil {
		logger.Error(err, "stack teardown failed", "stack", stack.Name)
	}
}

func (e *TestStepExecutor) configureMethodLifecycle(logger logr.Logger, task Task, stack StackSpec) {
	configurable, ok := task.(EnvConfigurable)
	if !ok {
		logger.Info("test task does not accept environment settings, method lifecycle settings dropped", "stack", stack.Name)
		return
	}

	settings := MethodLifecycleSettings(stack)
	for key, value := range settings {
		configurable.SetEnv(key, value)
	}

	logger.V(1).Info("propagated stack settings to test environment", "stack", stack.Name, "settings", settings)
}
