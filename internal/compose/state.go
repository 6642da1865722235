package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/gofrs/flock"

	"github.com/raffis/stackpipe/internal/pipeline"
	"github.com/raffis/stackpipe/pkg/apis/core/v1beta1"
	"github.com/raffis/stackpipe/pkg/stackstate"
)

// StateFilePath is the location of the state file of a stack.
func StateFilePath(stateDir, stackName string) string {
	return stackstate.Path(stateDir, stackName)
}

func (s *Service) containers(ctx context.Context, project string) ([]container.Summary, error) {
	containers, err := s.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", fmt.Sprintf("%s=%s", projectLabel, project))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers of project `%s`: %w", project, err)
	}

	sort.Slice(containers, func(i, j int) bool {
		return containerName(containers[i]) < containerName(containers[j])
	})

	return containers, nil
}

func (s *Service) collectState(ctx context.Context, stack pipeline.StackSpec) (pipeline.StackState, error) {
	containers, err := s.containers(ctx, stack.ProjectName)
	if err != nil {
		return pipeline.StackState{}, err
	}

	state := pipeline.StackState{
		StackName:   stack.Name,
		ProjectName: stack.ProjectName,
		Services:    make(map[string]pipeline.ServiceState),
	}

	for _, c := range containers {
		service := c.Labels[serviceLabel]
		if service == "" {
			continue
		}

		if _, ok := state.Services[service]; ok {
			s.logger.V(1).Info("service has multiple replicas, only the first one is recorded", "service", service)
			continue
		}

		var ports []pipeline.PortBinding
		for _, port := range c.Ports {
			if port.PublicPort == 0 {
				continue
			}

			ports = append(ports, pipeline.PortBinding{
				Host:      int(port.PublicPort),
				Container: int(port.PrivatePort),
				Protocol:  port.Type,
			})
		}

		sort.Slice(ports, func(i, j int) bool {
			if ports[i].Container != ports[j].Container {
				return ports[i].Container < ports[j].Container
			}

			if ports[i].Host != ports[j].Host {
				return ports[i].Host < ports[j].Host
			}

			return ports[i].Protocol < ports[j].Protocol
		})

		state.Services[service] = pipeline.ServiceState{
			ContainerID:   c.ID,
			ContainerName: containerName(c),
			State:         string(c.State),
			Ports:         dedupPorts(ports),
		}
	}

	return state, nil
}

// dedupPorts drops the duplicate ipv6 bindings docker reports next to the ipv4 ones.
func dedupPorts(ports []pipeline.PortBinding) []pipeline.PortBinding {
	var out []pipeline.PortBinding
	for i, port := range ports {
		if i > 0 && ports[i-1] == port {
			continue
		}

		out = append(out, port)
	}

	return out
}

func containerName(c container.Summary) string {
	if len(c.Names) == 0 {
		return c.ID
	}

	return strings.TrimPrefix(c.Names[0], "/")
}

// NewStateFile converts a stack state into its persisted form.
func NewStateFile(state pipeline.StackState, lifecycle pipeline.Lifecycle, now time.Time) v1beta1.StackState {
	if lifecycle == "" {
		lifecycle = pipeline.LifecycleClass
	}

	file := v1beta1.StackState{
		StackName:   state.StackName,
		ProjectName: state.ProjectName,
		Lifecycle:   lifecycle.String(),
		Timestamp:   now.UTC().Format(time.RFC3339),
		Services:    make(map[string]v1beta1.ServiceState, len(state.Services)),
	}

	for name, service := range state.Services {
		ports := make([]v1beta1.PublishedPort, 0, len(service.Ports))
		for _, port := range service.Ports {
			ports = append(ports, v1beta1.PublishedPort{
				Host:      port.Host,
				Container: port.Container,
				Protocol:  port.Protocol,
			})
		}

		file.Services[name] = v1beta1.ServiceState{
			ContainerID:    service.ContainerID,
			ContainerName:  service.ContainerName,
			State:          service.State,
			PublishedPorts: ports,
		}
	}

	return file
}

func (s *Service) writeState(stack pipeline.StackSpec, state pipeline.StackState) (string, error) {
	if err := os.MkdirAll(stack.StateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	path := StateFilePath(stack.StateDir, stack.Name)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("failed to lock state file: %w", err)
	}

	defer func() {
		_ = lock.Unlock()
	}()

	b, err := json.MarshalIndent(NewStateFile(state, stack.Lifecycle, s.now()), "", "  ")
	if err != nil {
		return "", err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return "", fmt.Errorf("failed to write state file: %w", err)
	}

	return path, os.Rename(tmp, path)
}

func (s *Service) removeState(stack pipeline.StackSpec) error {
	path := StateFilePath(stack.StateDir, stack.Name)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}

	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(path + ".lock")
	}()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
