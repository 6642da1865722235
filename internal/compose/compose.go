package compose

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	dockerclient "github.com/docker/docker/client"
	"github.com/go-logr/logr"

	"github.com/raffis/stackpipe/internal/pipeline"
)

const (
	projectLabel = "com.docker.compose.project"
	serviceLabel = "com.docker.compose.service"
)

// Client is the subset of the docker engine api used to inspect a running stack.
type Client interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
}

var _ Client = &dockerclient.Client{}

type Option func(*Service)

func WithLogger(logger logr.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithExecutor(executor Executor) Option {
	return func(s *Service) {
		s.executor = executor
	}
}

// WithOutput sets the writer the compose cli output is forwarded to.
func WithOutput(w io.Writer) Option {
	return func(s *Service) {
		s.output = w
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithEnv adds environment variables to every compose cli invocation.
func WithEnv(env []string) Option {
	return func(s *Service) {
		s.env = env
	}
}

// WithSnapshotTail limits the number of log lines per container kept when a
// stack is torn down. Values below 1 select pipeline.DefaultLogTail.
func WithSnapshotTail(lines int) Option {
	return func(s *Service) {
		s.snapshotTail = lines
	}
}

func WithWorkDir(dir string) Option {
	return func(s *Service) {
		s.workDir = dir
	}
}

// Service implements pipeline.StackService with the compose cli for lifecycle
// operations and the engine api for inspection.
type Service struct {
	client   Client
	executor Executor
	logger   logr.Logger
	output   io.Writer
	now      func() time.Time
	workDir  string
	env      []string

	snapshotTail int

	mu        sync.Mutex
	snapshots map[string]logSnapshot
}

var _ pipeline.StackService = &Service{}

func NewService(client Client, opts ...Option) *Service {
	s := &Service{
		client:    client,
		logger:    logr.Discard(),
		output:    io.Discard,
		now:       time.Now,
		snapshots: make(map[string]logSnapshot),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.executor == nil {
		s.executor = &CLIExecutor{Logger: s.logger}
	}

	return s
}

func (s *Service) baseArgs(stack pipeline.StackSpec) []string {
	var args []string
	for _, file := range stack.Files {
		args = append(args, "-f", file)
	}

	if stack.ProjectName != "" {
		args = append(args, "-p", stack.ProjectName)
	}

	for _, envFile := range stack.EnvFiles {
		args = append(args, "--env-file", envFile)
	}

	return args
}

func (s *Service) run(ctx context.Context, stack pipeline.StackSpec, args ...string) error {
	return s.executor.Run(ctx, Command{
		Dir:    s.workDir,
		Args:   append(s.baseArgs(stack), args...),
		Env:    s.env,
		Stdout: s.output,
		Stderr: s.output,
	})
}

// Up starts the stack detached, waits for the configured services and persists the
// resulting state file. A stack which was started but does not become ready is torn
// down again before the error is returned.
func (s *Service) Up(ctx context.Context, stack pipeline.StackSpec) (pipeline.StackState, error) {
	logger := s.logger.WithValues("stack", stack.Name, "project", stack.ProjectName)
	startedAt := s.now()

	if err := s.run(ctx, stack, "up", "-d", "--remove-orphans"); err != nil {
		return pipeline.StackState{}, err
	}

	state, err := s.awaitStack(ctx, logger, stack)
	if err != nil {
		logger.Info("stack did not become ready, tearing it down", "err", err.Error())
		if downErr := s.Down(context.WithoutCancel(ctx), stack); downErr != nil {
			logger.Error(downErr, "failed to tear down stack")
		}

		return pipeline.StackState{}, err
	}

	logger.Info("stack is up", "services", len(state.Services), "duration", s.now().Sub(startedAt))
	return state, nil
}

func (s *Service) awaitStack(ctx context.Context, logger logr.Logger, stack pipeline.StackSpec) (pipeline.StackState, error) {
	for _, wait := range stack.Wait {
		if err := s.WaitForServices(ctx, stack.ProjectName, wait); err != nil {
			return pipeline.StackState{}, err
		}
	}

	state, err := s.collectState(ctx, stack)
	if err != nil {
		return pipeline.StackState{}, err
	}

	if stack.StateDir != "" {
		path, err := s.writeState(stack, state)
		if err != nil {
			return pipeline.StackState{}, err
		}

		logger.V(1).Info("stack state written", "path", path)
	}

	return state, nil
}

// Down snapshots the stack logs and removes the stack including its volumes.
// The snapshot keeps logs available for diagnostics after teardown.
func (s *Service) Down(ctx context.Context, stack pipeline.StackSpec) error {
	if snapshot, err := s.snapshotLogs(ctx, stack.ProjectName); err != nil {
		s.logger.Error(err, "failed to snapshot stack logs", "stack", stack.Name)
	} else {
		s.mu.Lock()
		s.snapshots[stack.ProjectName] = snapshot
		s.mu.Unlock()
	}

	if err := s.run(ctx, stack, "down", "-v", "--remove-orphans"); err != nil {
		return err
	}

	if stack.StateDir != "" {
		if err := s.removeState(stack); err != nil {
			s.logger.Error(err, "failed to remove stack state", "stack", stack.Name)
		}
	}

	s.logger.Info("stack is down", "stack", stack.Name, "project", stack.ProjectName)
	return nil
}
