package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failedContext() PipelineContext {
	return NewPipelineContext("app").
		WithBuiltImage(ImageRef{Name: "app:1.0"}).
		WithTestResult(NewFailureResult(8, 0, 0, 2))
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)
	}
}

func TestFailureStepTagsAndLogs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	rec := &recorder{}
	images := &mockImages{recorder: rec}
	stacks := &mockStacks{recorder: rec, logs: "db | ready\napi | panic: nil map\n"}
	executor := NewFailureStepExecutor(images, stacks, WithClock(fixedClock()))

	var hookCalled bool
	out, err := executor.Execute(context.Background(), FailureStepSpec{
		AdditionalTags:     []string{"failed"},
		SaveFailureLogsDir: dir,
		Stack:              testStack(),
		LogServices:        []string{"api"},
		AfterFailure: func(ctx context.Context) {
			hookCalled = true
		},
	}, failedContext())

	require.NoError(t, err)
	assert.True(t, hookCalled)
	assert.Equal(t, []string{"failed"}, out.AppliedTags)
	assert.Equal(t, []string{"tag", "logs"}, rec.list())
	assert.Equal(t, "app-it", stacks.project)
	assert.Equal(t, LogsConfig{Services: []string{"api"}, Tail: DefaultLogTail}, stacks.config)

	b, err := os.ReadFile(filepath.Join(dir, "failure-logs-20240307-140509.log"))
	require.NoError(t, err)
	assert.Equal(t, "db | ready\napi | panic: nil map\n", string(b))
}

func TestFailureStepWithoutImage(t *testing.T) {
	rec := &recorder{}
	executor := NewFailureStepExecutor(&mockImages{recorder: rec}, &mockStacks{recorder: rec})

	var hookCalled bool
	in := NewPipelineContext("app").WithTestResult(NewFailureResult(0, 0, 0, 1))
	out, err := executor.Execute(context.Background(), FailureStepSpec{
		AdditionalTags: []string{"failed"},
		AfterFailure: func(ctx context.Context) {
			hookCalled = true
		},
	}, in)

	require.NoError(t, err)
	assert.True(t, hookCalled)
	assert.Equal(t, in, out)
	assert.Empty(t, rec.list())
}

func TestFailureStepSwallowsErrors(t *testing.T) {
	tests := []struct {
		name   string
		images *mockImages
		stacks *mockStacks
		stack  *StackSpec
	}{
		{
			name:   "tagging fails",
			images: &mockImages{tagErr: errors.New("no such image")},
			stacks: &mockStacks{},
			stack:  testStack(),
		},
		{
			name:   "log capture fails",
			images: &mockImages{},
			stacks: &mockStacks{logsErr: errors.New("daemon unreachable")},
			stack:  testStack(),
		},
		{
			name:   "log capture panics",
			images: &mockImages{},
			stacks: &mockStacks{panics: true},
			stack:  testStack(),
		},
		{
			name:   "no stack configured",
			images: &mockImages{},
			stacks: &mockStacks{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			tt.images.recorder = rec
			tt.stacks.recorder = rec
			executor := NewFailureStepExecutor(tt.images, tt.stacks)
			dir := t.TempDir()

			var hookCalled bool
			out, err := executor.Execute(context.Background(), FailureStepSpec{
				AdditionalTags:     []string{"failed"},
				SaveFailureLogsDir: dir,
				Stack:              tt.stack,
				AfterFailure: func(ctx context.Context) {
					hookCalled = true
				},
			}, failedContext())

			require.NoError(t, err)
			assert.True(t, hookCalled)
			if tt.images.tagErr != nil {
				assert.Empty(t, out.AppliedTags)
			}

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestFailureStepCustomLogTail(t *testing.T) {
	rec := &recorder{}
	stacks := &mockStacks{recorder: rec}
	executor := NewFailureStepExecutor(&mockImages{recorder: rec}, stacks)

	_, err := executor.Execute(context.Background(), FailureStepSpec{
		SaveFailureLogsDir: t.TempDir(),
		Stack:              testStack(),
		LogTail:            50,
	}, failedContext())

	require.NoError(t, err)
	assert.Equal(t, 50, stacks.config.Tail)
	assert.Nil(t, stacks.config.Services)
}
