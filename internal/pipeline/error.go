package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSpec   = errors.New("invalid step specification")
	ErrTaskNotFound  = errors.New("task not found")
	ErrComposeUp     = errors.New("compose up failed")
	ErrTestExecution = errors.New("test execution failed")
	ErrNoBuiltImage  = errors.New("no built image available")
)

func NewErrInvalidSpec(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSpec, msg)
}

func NewErrTaskNotFound(name string) error {
	return fmt.Errorf("%w: `%s`", ErrTaskNotFound, name)
}

func NewErrTestExecution(task string, err error) error {
	return fmt.Errorf("%w: task `%s`: %w", ErrTestExecution, task, err)
}

// IsConfigurationError reports whether err signals a misconfigured pipeline
// rather than a runtime fault.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidSpec) || errors.Is(err, ErrTaskNotFound)
}
