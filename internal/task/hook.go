package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/raffis/stackpipe/internal/pipeline"
)

// HookCommand describes a user command bound to a pipeline hook.
type HookCommand struct {
	Name    string
	Command []string
	Env     map[string]string
	Dir     string
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  logr.Logger
}

// Hook turns the command into a pipeline hook. Hooks can not fail a pipeline, a
// failing command is logged.
func (h HookCommand) Hook() pipeline.Hook {
	if len(h.Command) == 0 {
		return nil
	}

	return func(ctx context.Context) {
		h.run(ctx, nil)
	}
}

// ResultHook passes the test result to the command as STACKPIPE_TEST_* variables.
func (h HookCommand) ResultHook() pipeline.ResultHook {
	if len(h.Command) == 0 {
		return nil
	}

	return func(ctx context.Context, result pipeline.TestResult) {
		h.run(ctx, map[string]string{
			"STACKPIPE_TEST_SUCCESS":    strconv.FormatBool(result.Success),
			"STACKPIPE_TEST_TOTAL":      strconv.Itoa(result.TotalCount),
			"STACKPIPE_TEST_EXECUTED":   strconv.Itoa(result.Executed),
			"STACKPIPE_TEST_FAILED":     strconv.Itoa(result.FailureCount),
			"STACKPIPE_TEST_SKIPPED":    strconv.Itoa(result.Skipped),
			"STACKPIPE_TEST_UP_TO_DATE": strconv.Itoa(result.UpToDate),
		})
	}
}

func (h HookCommand) run(ctx context.Context, extra map[string]string) {
	logger := h.Logger.WithValues("hook", h.Name)

	cmd := exec.CommandContext(ctx, h.Command[0], h.Command[1:]...)
	cmd.Dir = h.Dir
	cmd.Stdout = writerOrDefault(h.Stdout, os.Stdout)
	cmd.Stderr = writerOrDefault(h.Stderr, os.Stderr)
	cmd.Env = os.Environ()
	for k, v := range h.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	for k, v := range extra {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	logger.V(1).Info("run hook", "command", h.Command)
	if err := cmd.Run(); err != nil {
		logger.Error(err, "hook failed", "command", h.Command)
	}
}

func writerOrDefault(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}

	return w
}
