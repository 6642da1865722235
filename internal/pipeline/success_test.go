package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testedContext() PipelineContext {
	return NewPipelineContext("app").
		WithBuiltImage(ImageRef{ID: "sha256:abc", Name: "registry.local/app:1.0"}).
		WithTestResult(NewSuccessResult(10, 0, 0))
}

func TestSuccessStepOrder(t *testing.T) {
	rec := &recorder{}
	images := &mockImages{recorder: rec}
	executor := NewSuccessStepExecutor(images)

	out, err := executor.Execute(context.Background(), SuccessStepSpec{
		AdditionalTags: []string{"tested"},
		Save:           &SaveTarget{Path: "app.tar.gz", Compression: CompressionGzip},
		Publish:        &PublishTarget{Registry: "ghcr.io", Namespace: "raffis", Repository: "app", Tags: []string{"1.0"}},
		AfterSuccess: func(ctx context.Context) {
			rec.add("hook")
		},
	}, testedContext())

	require.NoError(t, err)
	assert.Equal(t, []string{"tested"}, out.AppliedTags)
	assert.Equal(t, [][]string{{"tested"}}, images.tagged)
	assert.Equal(t, []string{"tag", "save", "publish", "hook"}, rec.list())
}

func TestSuccessStepNothingConfigured(t *testing.T) {
	rec := &recorder{}
	executor := NewSuccessStepExecutor(&mockImages{recorder: rec})

	in := testedContext()
	out, err := executor.Execute(context.Background(), SuccessStepSpec{}, in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Empty(t, rec.list())
}

func TestSuccessStepRequiresImage(t *testing.T) {
	tests := []struct {
		name string
		spec SuccessStepSpec
	}{
		{name: "tags", spec: SuccessStepSpec{AdditionalTags: []string{"tested"}}},
		{name: "save", spec: SuccessStepSpec{Save: &SaveTarget{Path: "app.tar"}}},
		{name: "publish", spec: SuccessStepSpec{Publish: &PublishTarget{Registry: "ghcr.io", Tags: []string{"1.0"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			executor := NewSuccessStepExecutor(&mockImages{recorder: rec})

			pc := NewPipelineContext("app").WithTestResult(NewSuccessResult(1, 0, 0))
			_, err := executor.Execute(context.Background(), tt.spec, pc)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNoBuiltImage)
			assert.Empty(t, rec.list())
		})
	}
}

func TestSuccessStepErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name     string
		images   *mockImages
		expected []string
	}{
		{
			name:     "tag fails",
			images:   &mockImages{tagErr: errors.New("no such image")},
			expected: []string{"tag"},
		},
		{
			name:     "save fails",
			images:   &mockImages{saveErr: errors.New("disk full")},
			expected: []string{"tag", "save"},
		},
		{
			name:     "publish fails",
			images:   &mockImages{publishErr: errors.New("unauthorized")},
			expected: []string{"tag", "save", "publish"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			tt.images.recorder = rec
			executor := NewSuccessStepExecutor(tt.images)

			_, err := executor.Execute(context.Background(), SuccessStepSpec{
				AdditionalTags: []string{"tested"},
				Save:           &SaveTarget{Path: "app.tar"},
				Publish:        &PublishTarget{Registry: "ghcr.io", Tags: []string{"1.0"}},
				AfterSuccess: func(ctx context.Context) {
					rec.add("hook")
				},
			}, testedContext())

			require.Error(t, err)
			assert.Equal(t, tt.expected, rec.list())
		})
	}
}
