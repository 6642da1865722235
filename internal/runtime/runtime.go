package runtime

import (
	"context"
	"fmt"
	"io"
)

// Interface runs one-shot containers, for example a test suite packaged as an image.
type Interface interface {
	RunContainer(ctx context.Context, spec ContainerSpec, stdout, stderr io.Writer) (Await, error)
	RemoveContainer(ctx context.Context, containerID string) error
}

type Await interface {
	ContainerID() string
	Wait() error
}

type Volume struct {
	HostPath string
	Path     string
	ReadOnly bool
}

type ContainerSpec struct {
	Name            string
	Image           string
	ImagePullPolicy PullImagePolicy
	Command         []string
	Args            []string
	Env             []string
	PWD             string
	// Network attaches the container to an existing network, usually the one of a compose project.
	Network string
	Volumes []Volume
}

type PullImagePolicy string

var (
	PullImagePolicyAlways  PullImagePolicy = "Always"
	PullImagePolicyNever   PullImagePolicy = "Never"
	PullImagePolicyMissing PullImagePolicy = "Missing"
)

// Result is returned from Await.Wait if the container terminated with a non zero exit code.
type Result struct {
	ExitCode int
}

func (e *Result) Error() string {
	return fmt.Sprintf("container terminated with code %d", e.ExitCode)
}
