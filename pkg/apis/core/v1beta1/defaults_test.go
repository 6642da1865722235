package v1beta1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

func validPipeline() Pipeline {
	p := Pipeline{
		ObjectMeta: metav1.ObjectMeta{Name: "app"},
		PipelineSpec: PipelineSpec{
			Build:  &BuildSpec{Tags: []string{"app:1.0"}},
			Stacks: []StackSpec{{Name: "Integration", Files: []string{"compose.yaml"}, WaitForHealthy: &WaitSpec{Services: []string{"db"}}}},
			Test: TestSpec{
				Stack: "Integration",
				Task:  TaskSpec{Command: []string{"go", "test", "./..."}},
			},
			OnSuccess: &SuccessSpec{Save: &SaveSpec{OutputFile: "app.tar"}},
			OnFailure: &FailureSpec{},
		},
	}

	p.SetDefaults()
	return p
}

func TestSetDefaults(t *testing.T) {
	p := validPipeline()

	assert.Equal(t, "app", p.PipelineSpec.Name)
	assert.Equal(t, DefaultStateDir, p.StateDir)
	assert.Equal(t, ".", p.Build.Context)
	assert.Equal(t, "Dockerfile", p.Build.Dockerfile)
	assert.Equal(t, "integration", p.Stacks[0].ProjectName)
	assert.Equal(t, DefaultWaitTimeout, p.Stacks[0].WaitForHealthy.Timeout.Duration)
	assert.Equal(t, 2*time.Second, p.Stacks[0].WaitForHealthy.PollInterval.Duration)
	assert.Equal(t, LifecycleClass, p.Test.Lifecycle)
	assert.Equal(t, DefaultTaskName, p.Test.Task.Name)
	assert.Equal(t, CompressionNone, p.OnSuccess.Save.Compression)
	assert.Equal(t, DefaultLogTail, p.OnFailure.LogTail)
}

func TestSetDefaultsImageAsBuildTag(t *testing.T) {
	p := Pipeline{PipelineSpec: PipelineSpec{Image: "app:dev", Build: &BuildSpec{}, Test: TestSpec{Lifecycle: "METHOD"}}}
	p.SetDefaults()

	assert.Equal(t, []string{"app:dev"}, p.Build.Tags)
	assert.Equal(t, LifecycleMethod, p.Test.Lifecycle)
}

func TestValidate(t *testing.T) {
	require.NoError(t, func() error { p := validPipeline(); return p.Validate() }())

	tests := []struct {
		name     string
		mutate   func(p *Pipeline)
		expected []string
	}{
		{
			name:     "missing image",
			mutate:   func(p *Pipeline) { p.Build = nil },
			expected: []string{"image"},
		},
		{
			name: "duplicate stack",
			mutate: func(p *Pipeline) {
				p.Stacks = append(p.Stacks, p.Stacks[0])
			},
			expected: []string{"stacks[1].name"},
		},
		{
			name:     "undeclared stack",
			mutate:   func(p *Pipeline) { p.Test.Stack = "e2e" },
			expected: []string{"test.stack"},
		},
		{
			name: "delegated without stack",
			mutate: func(p *Pipeline) {
				p.Test.Stack = ""
				p.Test.Lifecycle = LifecycleMethod
			},
		},
		{
			name:     "stack required",
			mutate:   func(p *Pipeline) { p.Test.Stack = "" },
			expected: []string{"test.stack"},
		},
		{
			name:     "invalid lifecycle",
			mutate:   func(p *Pipeline) { p.Test.Lifecycle = "suite" },
			expected: []string{"test.lifecycle"},
		},
		{
			name:     "task without command",
			mutate:   func(p *Pipeline) { p.Test.Task.Command = nil },
			expected: []string{"test.task"},
		},
		{
			name:     "unsupported compression",
			mutate:   func(p *Pipeline) { p.OnSuccess.Save.Compression = "bzip2" },
			expected: []string{"onSuccess.save.compression"},
		},
		{
			name: "publish without tags",
			mutate: func(p *Pipeline) {
				p.OnSuccess.Publish = &PublishSpec{Registry: "ghcr.io"}
			},
			expected: []string{"onSuccess.publish.tags"},
		},
		{
			name:     "negative log tail",
			mutate:   func(p *Pipeline) { p.OnFailure.LogTail = -1 },
			expected: []string{"onFailure.logTail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPipeline()
			tt.mutate(&p)

			var fields []string
			for _, err := range p.ValidateFields() {
				fields = append(fields, err.Field)
			}

			assert.Equal(t, tt.expected, fields)
			if len(tt.expected) == 0 {
				assert.NoError(t, p.Validate())
			} else {
				assert.Error(t, p.Validate())
			}
		})
	}
}

func TestValidateFieldTypes(t *testing.T) {
	p := validPipeline()
	p.Test.Stack = "e2e"

	errs := p.ValidateFields()
	require.Len(t, errs, 1)
	assert.Equal(t, field.ErrorTypeNotFound, errs[0].Type)
}
