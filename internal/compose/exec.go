package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"
)

// Command is a single invocation of the compose cli.
type Command struct {
	Dir    string
	Args   []string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

func (c Command) String() string {
	return shellQuoteArgs(c.Args)
}

// Executor runs compose cli commands.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
}

// CLIExecutor invokes the docker compose plugin, or a standalone binary if Binary is set.
type CLIExecutor struct {
	Binary string
	Logger logr.Logger
}

func (e *CLIExecutor) Run(ctx context.Context, command Command) error {
	name, args := "docker", append([]string{"compose"}, command.Args...)
	if e.Binary != "" {
		name, args = e.Binary, command.Args
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = command.Dir
	cmd.Stdout = command.Stdout
	cmd.Stderr = command.Stderr
	cmd.Env = append(os.Environ(), command.Env...)

	full := name + " " + shellQuoteArgs(args)
	e.Logger.V(1).Info("run compose command", "command", full, "dir", command.Dir)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			return fmt.Errorf("command failed (exit=%d): %s: %w", exitErr.ExitCode(), full, err)
		case errors.Is(ctx.Err(), context.Canceled):
			return fmt.Errorf("command canceled: %s: %w", full, ctx.Err())
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return fmt.Errorf("command timed out: %s: %w", full, ctx.Err())
		default:
			return fmt.Errorf("failed to run command: %s: %w", full, err)
		}
	}

	return nil
}

func shellQuoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'`$\\*?[]{}()<>|&;") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}

	return strings.Join(quoted, " ")
}
