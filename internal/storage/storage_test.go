package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raffis/stackpipe/pkg/apis/core/v1beta1"
)

const manifest = `apiVersion: stackpipe.raffis.github.io/v1beta1
kind: Pipeline
metadata:
  name: app
build:
  tags: ["app:1.0"]
stacks:
- name: integration
  files: ["compose.yaml"]
  waitForHealthy:
    services: ["postgres"]
    timeout: 30s
test:
  stack: integration
  task:
    command: ["go", "test", "-json", "./..."]
    goTestJSON: true
onFailure:
  saveFailureLogsDir: logs
`

func TestDecode(t *testing.T) {
	pipeline, err := Decode([]byte(manifest))
	require.NoError(t, err)
	require.NoError(t, pipeline.Validate())

	assert.Equal(t, "app", pipeline.PipelineSpec.Name)
	assert.Equal(t, ".", pipeline.Build.Context)
	assert.Equal(t, "Dockerfile", pipeline.Build.Dockerfile)
	assert.Equal(t, v1beta1.DefaultStateDir, pipeline.StateDir)
	assert.Equal(t, v1beta1.LifecycleClass, pipeline.Test.Lifecycle)
	assert.Equal(t, v1beta1.DefaultTaskName, pipeline.Test.Task.Name)
	assert.Equal(t, v1beta1.DefaultLogTail, pipeline.OnFailure.LogTail)

	stack, ok := pipeline.Stack("integration")
	require.True(t, ok)
	assert.Equal(t, "integration", stack.ProjectName)
	assert.Equal(t, 30*time.Second, stack.WaitForHealthy.Timeout.Duration)
	assert.Equal(t, v1beta1.DefaultWaitPollInteval, stack.WaitForHealthy.PollInterval.Duration)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{name: "unknown kind", manifest: "apiVersion: stackpipe.raffis.github.io/v1beta1\nkind: Deployment\n"},
		{name: "missing api version", manifest: "kind: Pipeline\n"},
		{name: "unknown field", manifest: manifest + "unknown: true\n"},
		{name: "invalid yaml", manifest: "apiVersion: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.manifest))
			assert.Error(t, err)
		})
	}
}

func TestLookup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(manifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte(manifest), 0644))

	store := New(WithFile(), WithDefaultFile(dir))

	tests := []struct {
		name        string
		ref         string
		expectError bool
	}{
		{name: "explicit file", ref: filepath.Join(dir, "other.yaml")},
		{name: "default file", ref: ""},
		{name: "directory", ref: dir},
		{name: "not found", ref: filepath.Join(dir, "missing.yaml"), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline, err := store.Lookup(context.Background(), tt.ref)
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "app", pipeline.PipelineSpec.Name)
		})
	}
}
