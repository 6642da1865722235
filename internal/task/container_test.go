package task

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raffis/stackpipe/internal/pipeline"
	"github.com/raffis/stackpipe/internal/runtime"
)

type mockAwait struct {
	err error
}

func (a *mockAwait) ContainerID() string {
	return "container-id"
}

func (a *mockAwait) Wait() error {
	return a.err
}

type mockRuntime struct {
	spec    runtime.ContainerSpec
	stdout  string
	waitErr error
	runErr  error
	removed []string
}

func (m *mockRuntime) RunContainer(ctx context.Context, spec runtime.ContainerSpec, stdout, stderr io.Writer) (runtime.Await, error) {
	if m.runErr != nil {
		return nil, m.runErr
	}

	m.spec = spec
	_, _ = io.WriteString(stdout, m.stdout)
	return &mockAwait{err: m.waitErr}, nil
}

func (m *mockRuntime) RemoveContainer(ctx context.Context, containerID string) error {
	m.removed = append(m.removed, containerID)
	return nil
}

func TestContainerTask(t *testing.T) {
	tests := []struct {
		name        string
		runtime     *mockRuntime
		goTestJSON  bool
		expected    pipeline.TaskOutcome
		expectError bool
	}{
		{
			name:     "success",
			runtime:  &mockRuntime{},
			expected: pipeline.TaskOutcome{Executed: 1},
		},
		{
			name:     "non zero exit",
			runtime:  &mockRuntime{waitErr: &runtime.Result{ExitCode: 1}},
			expected: pipeline.TaskOutcome{Failed: 1},
		},
		{
			name: "go test json",
			runtime: &mockRuntime{
				stdout:  `{"Action":"pass","Package":"p","Test":"TestA"}` + "\n" + `{"Action":"fail","Package":"p","Test":"TestB"}` + "\n",
				waitErr: &runtime.Result{ExitCode: 1},
			},
			goTestJSON: true,
			expected:   pipeline.TaskOutcome{Executed: 1, Failed: 1},
		},
		{
			name:        "daemon error",
			runtime:     &mockRuntime{waitErr: errors.New("unexpected EOF")},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			task := NewContainerTask("test", tt.runtime, runtime.ContainerSpec{
				Image: "app-tests:latest",
				Env:   []string{"BASE=1"},
			}, WithContainerGoTestJSON(tt.goTestJSON), WithContainerOutput(out, out))

			err := task.Run(context.Background())
			assert.Equal(t, []string{"container-id"}, tt.runtime.removed)
			if tt.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, task.Outcome())
		})
	}
}

func TestContainerTaskEnvironment(t *testing.T) {
	rt := &mockRuntime{}
	task := NewContainerTask("test", rt, runtime.ContainerSpec{Image: "app-tests:latest", Env: []string{"BASE=1"}},
		WithContainerEnv(map[string]string{"DB_HOST": "db"}),
		WithContainerOutput(io.Discard, io.Discard),
	)
	task.SetEnv(pipeline.SettingComposeProject, "app-it")

	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, []string{"BASE=1", "DB_HOST=db", "STACKPIPE_COMPOSE_PROJECT=app-it"}, rt.spec.Env)
}

func TestContainerTaskRunError(t *testing.T) {
	rt := &mockRuntime{runErr: errors.New("no such image")}
	task := NewContainerTask("test", rt, runtime.ContainerSpec{Image: "app-tests:latest"})

	require.Error(t, task.Run(context.Background()))
	assert.Empty(t, rt.removed)
}
