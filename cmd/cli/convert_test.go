package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/raffis/stackpipe/internal/compose"
	"github.com/raffis/stackpipe/internal/pipeline"
	"github.com/raffis/stackpipe/internal/runtime"
	"github.com/raffis/stackpipe/internal/task"
	"github.com/raffis/stackpipe/pkg/apis/core/v1beta1"
)

func testPipeline() v1beta1.Pipeline {
	p := v1beta1.Pipeline{
		PipelineSpec: v1beta1.PipelineSpec{
			Name: "api",
			Build: &v1beta1.BuildSpec{
				Tags: []string{"api:dev"},
			},
			Stacks: []v1beta1.StackSpec{
				{
					Name:        "integration",
					Files:       []string{"compose.yaml"},
					ProjectName: "api-it",
					WaitForRunning: &v1beta1.WaitSpec{
						Services: []string{"migrations"},
					},
					WaitForHealthy: &v1beta1.WaitSpec{
						Services:     []string{"postgres"},
						Timeout:      metav1.Duration{Duration: time.Minute},
						PollInterval: metav1.Duration{Duration: time.Second},
					},
				},
			},
			Test: v1beta1.TestSpec{
				Stack: "integration",
				Task: v1beta1.TaskSpec{
					Name:    "integrationTest",
					Command: []string{"go", "test", "./..."},
				},
			},
			OnSuccess: &v1beta1.SuccessSpec{
				AdditionalTags: []string{"tested"},
				Save:           &v1beta1.SaveSpec{OutputFile: "api.tar.gz", Compression: v1beta1.CompressionGzip},
				Publish: &v1beta1.PublishSpec{
					Registry: "ghcr.io",
					Tags:     []string{"1.0"},
					Auth:     &v1beta1.AuthSpec{Username: "ci", PasswordEnv: "STACKPIPE_TEST_PASSWORD"},
				},
			},
			OnFailure: &v1beta1.FailureSpec{
				AdditionalTags:     []string{"failed"},
				SaveFailureLogsDir: "logs",
				FailureLogServices: []string{"api"},
			},
			StateDir: ".stackpipe",
		},
	}

	p.SetDefaults()
	return p
}

func newTestBuilder() *specBuilder {
	return &specBuilder{
		stacks: compose.NewService(nil),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		logger: logr.Discard(),
		pull:   runtime.PullImagePolicyMissing,
	}
}

func TestSpecBuilder(t *testing.T) {
	t.Setenv("STACKPIPE_TEST_PASSWORD", "secret")

	spec, err := newTestBuilder().Build(testPipeline())
	require.NoError(t, err)

	stateDir, err := filepath.Abs(".stackpipe")
	require.NoError(t, err)

	assert.Equal(t, "api", spec.Name)
	require.NotNil(t, spec.Build.Build)
	assert.Equal(t, []string{"api:dev"}, spec.Build.Build.Tags)

	require.NotNil(t, spec.Test.Stack)
	assert.Equal(t, "api-it", spec.Test.Stack.ProjectName)
	assert.Equal(t, stateDir, spec.Test.Stack.StateDir)
	assert.Equal(t, pipeline.LifecycleClass, spec.Test.Stack.Lifecycle)
	assert.Equal(t, []pipeline.WaitSpec{
		{Services: []string{"postgres"}, Timeout: time.Minute, PollInterval: time.Second, Status: pipeline.WaitStatusHealthy},
		{Services: []string{"migrations"}, Status: pipeline.WaitStatusRunning},
	}, spec.Test.Stack.Wait)
	assert.Equal(t, "integrationTest", spec.Test.TestTaskName)

	require.NotNil(t, spec.OnSuccess.Save)
	assert.Equal(t, pipeline.CompressionGzip, spec.OnSuccess.Save.Compression)
	require.NotNil(t, spec.OnSuccess.Publish)
	assert.Equal(t, &pipeline.RegistryAuth{Username: "ci", Password: "secret"}, spec.OnSuccess.Publish.Auth)

	assert.Equal(t, spec.Test.Stack, spec.OnFailure.Stack)
	assert.Equal(t, []string{"api"}, spec.OnFailure.LogServices)
	assert.Nil(t, spec.OnSuccess.AfterSuccess)

	registry, ok := spec.Tasks.(*task.Registry)
	require.True(t, ok)
	assert.Equal(t, []string{"composeDownIntegration", "composeUpIntegration", "integrationTest"}, registry.Names())

	test, ok := registry.FindByName("integrationTest")
	require.True(t, ok)
	require.IsType(t, &task.CommandTask{}, test)

	environ, err := test.(*task.CommandTask).Environ()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"STACKPIPE_STACK=integration",
		"STACKPIPE_STATE_DIR=" + stateDir,
	}, environ)
}

func TestSpecBuilderTestEnv(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(p *v1beta1.Pipeline)
		expected []string
	}{
		{
			name: "task env wins",
			mutate: func(p *v1beta1.Pipeline) {
				p.Test.Task.Env = map[string]string{"STACKPIPE_STACK": "other", "DB_NAME": "app"}
			},
			expected: []string{"DB_NAME=app", "STACKPIPE_STACK=other", "STACKPIPE_STATE_DIR=<state>"},
		},
		{
			name: "no stack",
			mutate: func(p *v1beta1.Pipeline) {
				p.Test.Stack = ""
				p.Test.DelegateStackManagement = true
				p.Test.Task.Env = map[string]string{"DB_NAME": "app"}
			},
			expected: []string{"DB_NAME=app"},
		},
		{
			name: "container task",
			mutate: func(p *v1beta1.Pipeline) {
				p.Test.Task.Image = "golang:1.24"
			},
			expected: []string{"STACKPIPE_STACK=integration", "STACKPIPE_STATE_DIR=<state>"},
		},
	}

	stateDir, err := filepath.Abs(".stackpipe")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPipeline()
			tt.mutate(&p)

			spec, err := newTestBuilder().Build(p)
			require.NoError(t, err)

			test, ok := spec.Tasks.FindByName("integrationTest")
			require.True(t, ok)

			environer, ok := test.(interface{ Environ() ([]string, error) })
			require.True(t, ok)

			environ, err := environer.Environ()
			require.NoError(t, err)

			for i, v := range tt.expected {
				tt.expected[i] = strings.ReplaceAll(v, "<state>", stateDir)
			}

			assert.Equal(t, tt.expected, environ)
		})
	}
}

func TestSnapshotTail(t *testing.T) {
	a := testPipeline()
	b := testPipeline()
	b.OnFailure.LogTail = 5000
	c := testPipeline()
	c.OnFailure = nil

	assert.Equal(t, 5000, snapshotTail([]v1beta1.Pipeline{a, b, c}))
	assert.Equal(t, 0, snapshotTail([]v1beta1.Pipeline{c}))
}

func TestSpecBuilderContainerTask(t *testing.T) {
	p := testPipeline()
	p.Test.Task.Image = "golang:1.24"

	spec, err := newTestBuilder().Build(p)
	require.NoError(t, err)

	test, ok := spec.Tasks.FindByName("integrationTest")
	require.True(t, ok)
	assert.IsType(t, &task.ContainerTask{}, test)
}

func TestSpecBuilderHooks(t *testing.T) {
	p := testPipeline()
	p.Test.BeforeTest = &v1beta1.HookSpec{Command: []string{"true"}}
	p.Test.AfterTest = &v1beta1.HookSpec{Command: []string{"true"}}
	p.OnFailure.AfterFailure = &v1beta1.HookSpec{Command: []string{"true"}}

	spec, err := newTestBuilder().Build(p)
	require.NoError(t, err)

	assert.NotNil(t, spec.Test.BeforeTest)
	assert.NotNil(t, spec.Test.AfterTest)
	assert.NotNil(t, spec.OnFailure.AfterFailure)
	assert.Nil(t, spec.OnSuccess.AfterSuccess)
}

func TestSpecBuilderInvalidLifecycle(t *testing.T) {
	p := testPipeline()
	p.Test.Lifecycle = "suite"

	_, err := newTestBuilder().Build(p)
	require.Error(t, err)
}

func TestValidationStatus(t *testing.T) {
	p := testPipeline()
	assert.Equal(t, metav1.StatusSuccess, validationStatus(p, p.ValidateFields()).Status)

	p.Test.Task.Command = nil
	status := validationStatus(p, p.ValidateFields())
	assert.Equal(t, metav1.StatusFailure, status.Status)
	assert.Equal(t, metav1.StatusReasonInvalid, status.Reason)
	require.NotNil(t, status.Details)
	assert.Equal(t, "api", status.Details.Name)
	assert.NotEmpty(t, status.Details.Causes)
}

func TestOutputFormat(t *testing.T) {
	var format OutputFormat
	require.NoError(t, format.Set("json"))
	assert.Equal(t, OutputJSON, format)
	assert.Error(t, format.Set("yaml"))
}
