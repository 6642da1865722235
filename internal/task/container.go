package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-logr/logr"

	"github.com/raffis/stackpipe/internal/pipeline"
	"github.com/raffis/stackpipe/internal/runtime"
)

// ContainerTask runs a test suite packaged as an image, attached to the network of
// the stack under test. Exit codes are handled like CommandTask does.
type ContainerTask struct {
	Env
	name       string
	runtime    runtime.Interface
	spec       runtime.ContainerSpec
	goTestJSON bool
	stdout     io.Writer
	stderr     io.Writer

	mu      sync.Mutex
	outcome pipeline.TaskOutcome
}

var (
	_ pipeline.Task            = &ContainerTask{}
	_ pipeline.OutcomeReporter = &ContainerTask{}
	_ pipeline.EnvConfigurable = &ContainerTask{}
)

type ContainerOption func(*ContainerTask)

func WithContainerOutput(stdout, stderr io.Writer) ContainerOption {
	return func(t *ContainerTask) {
		t.stdout = stdout
		t.stderr = stderr
	}
}

func WithContainerGoTestJSON(enabled bool) ContainerOption {
	return func(t *ContainerTask) {
		t.goTestJSON = enabled
	}
}

func WithContainerEnv(static map[string]string, files ...string) ContainerOption {
	return func(t *ContainerTask) {
		t.Static = static
		t.Files = files
	}
}

func NewContainerTask(name string, rt runtime.Interface, spec runtime.ContainerSpec, opts ...ContainerOption) *ContainerTask {
	t := &ContainerTask{
		name:    name,
		runtime: rt,
		spec:    spec,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *ContainerTask) Name() string {
	return t.name
}

func (t *ContainerTask) Outcome() pipeline.TaskOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

func (t *ContainerTask) Run(ctx context.Context) error {
	t.mu.Lock()
	t.outcome = pipeline.TaskOutcome{}
	t.mu.Unlock()

	logger, err := logr.FromContext(ctx)
	if err != nil {
		logger = logr.Discard()
	}

	environ, err := t.Environ()
	if err != nil {
		return err
	}

	spec := t.spec
	spec.Env = append(append([]string{}, spec.Env...), environ...)

	stdout := t.stdout
	var parser *GoTestParser
	if t.goTestJSON {
		parser = NewGoTestParser(t.stdout)
		stdout = parser
	}

	logger.V(1).Info("run test container", "image", spec.Image, "network", spec.Network)
	await, err := t.runtime.RunContainer(ctx, spec, stdout, t.stderr)
	if err != nil {
		return fmt.Errorf("failed to run test container: %w", err)
	}

	defer func() {
		if err := t.runtime.RemoveContainer(context.WithoutCancel(ctx), await.ContainerID()); err != nil {
			logger.Error(err, "failed to remove test container", "container", await.ContainerID())
		}
	}()

	exitCode := 0
	var result *runtime.Result
	switch waitErr := await.Wait(); {
	case waitErr == nil:
	case errors.As(waitErr, &result):
		exitCode = result.ExitCode
	default:
		return fmt.Errorf("test container failed: %w", waitErr)
	}

	if parser == nil {
		t.mu.Lock()
		t.outcome = outcomeFromExit(exitCode)
		t.mu.Unlock()
		return nil
	}

	if err := parser.Flush(); err != nil {
		return err
	}

	outcome := parser.Outcome()
	t.mu.Lock()
	t.outcome = outcome
	t.mu.Unlock()

	if exitCode != 0 && outcome.Failed == 0 {
		return fmt.Errorf("test container exited with code %d without reporting a failed test", exitCode)
	}

	return nil
}
