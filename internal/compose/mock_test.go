package compose

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

type mockExecutor struct {
	mu       sync.Mutex
	commands []Command
	err      error
	onRun    func(cmd Command)
}

func (m *mockExecutor) Run(ctx context.Context, cmd Command) error {
	m.mu.Lock()
	m.commands = append(m.commands, cmd)
	m.mu.Unlock()

	if m.onRun != nil {
		m.onRun(cmd)
	}

	return m.err
}

func (m *mockExecutor) args() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, cmd := range m.commands {
		out = append(out, strings.Join(cmd.Args, " "))
	}

	return out
}

type mockContainer struct {
	summary container.Summary
	health  string
	tty     bool
	logs    string
}

type mockClient struct {
	mu         sync.Mutex
	containers []mockContainer
	listErr    error
	listCalls  int
	onList     func(calls int, c *mockClient)
	inspectErr error
	logTails   []string
}

func (m *mockClient) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	m.mu.Lock()
	m.listCalls++
	onList := m.onList
	calls := m.listCalls
	m.mu.Unlock()

	if onList != nil {
		onList(calls, m)
	}

	if m.listErr != nil {
		return nil, m.listErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []container.Summary
	for _, c := range m.containers {
		out = append(out, c.summary)
	}

	return out, nil
}

func (m *mockClient) find(id string) (mockContainer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.containers {
		if c.summary.ID == id {
			return c, true
		}
	}

	return mockContainer{}, false
}

func (m *mockClient) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	if m.inspectErr != nil {
		return container.InspectResponse{}, m.inspectErr
	}

	c, ok := m.find(containerID)
	if !ok {
		return container.InspectResponse{}, errors.New("no such container")
	}

	state := &container.State{
		Status:  c.summary.State,
		Running: string(c.summary.State) == "running",
	}

	if c.health != "" {
		state.Health = &container.Health{Status: container.HealthStatus(c.health)}
	}

	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:    c.summary.ID,
			State: state,
		},
		Config: &container.Config{Tty: c.tty},
	}, nil
}

func (m *mockClient) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	m.mu.Lock()
	m.logTails = append(m.logTails, options.Tail)
	m.mu.Unlock()

	c, ok := m.find(containerID)
	if !ok {
		return nil, errors.New("no such container")
	}

	if c.tty {
		return io.NopCloser(strings.NewReader(c.logs)), nil
	}

	var buf bytes.Buffer
	w := stdcopy.NewStdWriter(&buf, stdcopy.Stdout)
	if _, err := w.Write([]byte(c.logs)); err != nil {
		return nil, err
	}

	return io.NopCloser(&buf), nil
}

func serviceContainer(project, service, state string) mockContainer {
	return mockContainer{
		summary: container.Summary{
			ID:     project + "-" + service + "-id",
			Names:  []string{"/" + project + "-" + service + "-1"},
			State:  container.ContainerState(state),
			Status: state,
			Labels: map[string]string{
				projectLabel: project,
				serviceLabel: service,
			},
		},
	}
}
