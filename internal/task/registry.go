package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/raffis/stackpipe/internal/pipeline"
)

type RegistryOption func(*Registry)

func WithLogger(logger logr.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry is the name indexed task lookup of a single pipeline.
type Registry struct {
	mu     sync.RWMutex
	tasks  map[string]pipeline.Task
	logger logr.Logger
}

var _ pipeline.TaskLookup = &Registry{}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tasks:  make(map[string]pipeline.Task),
		logger: logr.Discard(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds tasks to the registry, task names must be unique.
func (r *Registry) Register(tasks ...pipeline.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, task := range tasks {
		if _, ok := r.tasks[task.Name()]; ok {
			return fmt.Errorf("task `%s` is already registered", task.Name())
		}

		r.tasks[task.Name()] = task
	}

	return nil
}

func (r *Registry) FindByName(name string) (pipeline.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[name]
	return task, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

func (r *Registry) Execute(ctx context.Context, task pipeline.Task) error {
	logger := r.logger.WithValues("task", task.Name())
	logger.V(1).Info("task started")

	startedAt := time.Now()
	err := task.Run(logr.NewContext(ctx, logger))
	if err != nil {
		logger.V(1).Info("task failed", "duration", time.Since(startedAt), "err", err.Error())
		return err
	}

	logger.V(1).Info("task finished", "duration", time.Since(startedAt))
	return nil
}
