package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/go-logr/logr"

	"github.com/raffis/stackpipe/internal/pipeline"
)

// CommandTask runs a test suite as a local process.
// A non zero exit code is reported as failed tests, not as an error. Only a process
// which could not be executed at all returns an error from Run.
type CommandTask struct {
	Env
	name       string
	command    []string
	dir        string
	goTestJSON bool
	stdout     io.Writer
	stderr     io.Writer

	mu      sync.Mutex
	outcome pipeline.TaskOutcome
}

var (
	_ pipeline.Task            = &CommandTask{}
	_ pipeline.OutcomeReporter = &CommandTask{}
	_ pipeline.EnvConfigurable = &CommandTask{}
)

type CommandOption func(*CommandTask)

func WithDir(dir string) CommandOption {
	return func(t *CommandTask) {
		t.dir = dir
	}
}

func WithGoTestJSON(enabled bool) CommandOption {
	return func(t *CommandTask) {
		t.goTestJSON = enabled
	}
}

func WithOutput(stdout, stderr io.Writer) CommandOption {
	return func(t *CommandTask) {
		t.stdout = stdout
		t.stderr = stderr
	}
}

func WithEnv(static map[string]string, files ...string) CommandOption {
	return func(t *CommandTask) {
		t.Static = static
		t.Files = files
	}
}

func NewCommandTask(name string, command []string, opts ...CommandOption) *CommandTask {
	t := &CommandTask{
		name:    name,
		command: command,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *CommandTask) Name() string {
	return t.name
}

func (t *CommandTask) Outcome() pipeline.TaskOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

func (t *CommandTask) setOutcome(outcome pipeline.TaskOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcome = outcome
}

func (t *CommandTask) Run(ctx context.Context) error {
	t.setOutcome(pipeline.TaskOutcome{})
	if len(t.command) == 0 {
		return errors.New("no command configured")
	}

	environ, err := t.Environ()
	if err != nil {
		return err
	}

	logger, err := logr.FromContext(ctx)
	if err != nil {
		logger = logr.Discard()
	}

	cmd := exec.CommandContext(ctx, t.command[0], t.command[1:]...)
	cmd.Dir = t.dir
	cmd.Env = append(os.Environ(), environ...)
	cmd.Stderr = t.stderr

	var parser *GoTestParser
	if t.goTestJSON {
		parser = NewGoTestParser(t.stdout)
		cmd.Stdout = parser
	} else {
		cmd.Stdout = t.stdout
	}

	logger.V(1).Info("run command", "command", t.command, "dir", t.dir)
	runErr := cmd.Run()

	exitCode := 0
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr) && ctx.Err() == nil:
		exitCode = exitErr.ExitCode()
	default:
		return fmt.Errorf("failed to run command `%s`: %w", t.command[0], runErr)
	}

	return t.finish(parser, exitCode)
}

// finish records the outcome. A go test run which failed without a single failed test
// did not execute properly, for example because of a build error.
func (t *CommandTask) finish(parser *GoTestParser, exitCode int) error {
	if parser == nil {
		t.setOutcome(outcomeFromExit(exitCode))
		return nil
	}

	if err := parser.Flush(); err != nil {
		return err
	}

	outcome := parser.Outcome()
	t.setOutcome(outcome)

	if exitCode != 0 && outcome.Failed == 0 {
		return fmt.Errorf("go test exited with code %d without reporting a failed test", exitCode)
	}

	return nil
}
