package image

import (
	"context"
	"errors"
	"fmt"

	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

type ErrorType string

var (
	ErrorTypeDaemon       ErrorType = "daemon"
	ErrorTypeNotFound     ErrorType = "not-found"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeReference    ErrorType = "reference"
	ErrorTypeBuild        ErrorType = "build"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeCanceled     ErrorType = "canceled"
)

// Error is returned by every image operation. Suggestion holds a hint for the user, if any.
type Error struct {
	Op         string
	Image      string
	Type       ErrorType
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s `%s` failed: %s", e.Op, e.Image, e.Err)
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Suggestion)
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, image string, err error) *Error {
	var imageErr *Error
	if errors.As(err, &imageErr) {
		return imageErr
	}

	e := &Error{
		Op:    op,
		Image: image,
		Err:   err,
		Type:  ErrorTypeDaemon,
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.Type = ErrorTypeCanceled
	case dockerclient.IsErrConnectionFailed(err):
		e.Suggestion = "make sure the docker daemon is running and reachable, see --docker-host"
	case errdefs.IsNotFound(err):
		e.Type = ErrorTypeNotFound
		e.Suggestion = "make sure the image exists locally"
	case errdefs.IsUnauthorized(err), errdefs.IsForbidden(err):
		e.Type = ErrorTypeUnauthorized
		e.Suggestion = "check the registry credentials or run docker login"
	}

	return e
}

func newTypedError(op, image string, errType ErrorType, err error) *Error {
	return &Error{
		Op:    op,
		Image: image,
		Type:  errType,
		Err:   err,
	}
}
