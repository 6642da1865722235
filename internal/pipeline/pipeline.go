package pipeline

import (
	"context"
	"time"
)

type ImageService interface {
	BuildImage(ctx context.Context, build BuildContext) (ImageRef, error)
	TagImage(ctx context.Context, source ImageRef, tags []string) error
	SaveImage(ctx context.Context, ref ImageRef, target SaveTarget) error
	PublishImage(ctx context.Context, ref ImageRef, target PublishTarget) error
}

type StackService interface {
	Up(ctx context.Context, stack StackSpec) (StackState, error)
	Down(ctx context.Context, stack StackSpec) error
	WaitForServices(ctx context.Context, project string, wait WaitSpec) error
	CaptureLogs(ctx context.Context, project string, logs LogsConfig) (string, error)
}

type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type TaskLookup interface {
	FindByName(name string) (Task, bool)
	Execute(ctx context.Context, task Task) error
}

// OutcomeReporter is implemented by tasks which know how many tests they ran.
// Assertion failures are reported here instead of through the Run error.
type OutcomeReporter interface {
	Outcome() TaskOutcome
}

// EnvConfigurable is implemented by tasks which accept settings for the
// environment their tests are executed in.
type EnvConfigurable interface {
	SetEnv(key, value string)
}

type TaskOutcome struct {
	Executed int
	UpToDate int
	Skipped  int
	Failed   int
}

func (o TaskOutcome) Total() int {
	return o.Executed + o.UpToDate + o.Skipped + o.Failed
}

type Hook func(ctx context.Context)
type ResultHook func(ctx context.Context, result TestResult)

type BuildContext struct {
	ContextDir string
	Dockerfile string
	Tags       []string
	BuildArgs  map[string]string
	Labels     map[string]string
	Target     string
	Pull       bool
	NoCache    bool
}

type Compression string

var (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

type SaveTarget struct {
	Path        string
	Compression Compression
}

type RegistryAuth struct {
	Username string
	Password string
}

type PublishTarget struct {
	Registry   string
	Namespace  string
	Repository string
	Tags       []string
	Auth       *RegistryAuth
}

type WaitStatus string

var (
	WaitStatusRunning WaitStatus = "running"
	WaitStatusHealthy WaitStatus = "healthy"
)

type WaitSpec struct {
	Services     []string
	Timeout      time.Duration
	PollInterval time.Duration
	Status       WaitStatus
}

type StackSpec struct {
	Name        string
	Files       []string
	ProjectName string
	EnvFiles    []string
	Wait        []WaitSpec
	StateDir    string
	Lifecycle   Lifecycle
}

type PortBinding struct {
	Host      int
	Container int
	Protocol  string
}

type ServiceState struct {
	ContainerID   string
	ContainerName string
	State         string
	Ports         []PortBinding
}

type StackState struct {
	StackName   string
	ProjectName string
	Services    map[string]ServiceState
}

type LogsConfig struct {
	Services []string
	Tail     int
}
