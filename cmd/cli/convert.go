package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/raffis/stackpipe/internal/compose"
	"github.com/raffis/stackpipe/internal/pipeline"
	"github.com/raffis/stackpipe/internal/runtime"
	"github.com/raffis/stackpipe/internal/task"
	"github.com/raffis/stackpipe/pkg/apis/core/v1beta1"
	"github.com/raffis/stackpipe/pkg/stackstate"
)

// specBuilder turns a decoded pipeline into a runnable spec with its own task registry.
type specBuilder struct {
	stacks  *compose.Service
	runtime runtime.Interface
	stdout  io.Writer
	stderr  io.Writer
	logger  logr.Logger
	pull    runtime.PullImagePolicy
}

func (b *specBuilder) Build(p v1beta1.Pipeline) (pipeline.Spec, error) {
	name := p.PipelineSpec.Name
	lifecycle, err := pipeline.ParseLifecycle(string(p.Test.Lifecycle))
	if err != nil {
		return pipeline.Spec{}, err
	}

	stateDir, err := filepath.Abs(p.StateDir)
	if err != nil {
		return pipeline.Spec{}, fmt.Errorf("failed to resolve state dir: %w", err)
	}

	registry := task.NewRegistry(task.WithLogger(b.logger.WithValues("pipeline", name)))
	stacks := make(map[string]pipeline.StackSpec, len(p.Stacks))
	for _, s := range p.Stacks {
		stack := convertStack(s, stateDir, lifecycle)
		stacks[s.Name] = stack

		if err := registry.Register(b.stacks.Tasks(stack)...); err != nil {
			return pipeline.Spec{}, err
		}
	}

	var testStack *pipeline.StackSpec
	if stack, ok := stacks[p.Test.Stack]; ok {
		testStack = &stack
	}

	if err := registry.Register(b.testTask(p.Test.Task, stateDir, testStack)); err != nil {
		return pipeline.Spec{}, err
	}

	spec := pipeline.Spec{
		Name:  name,
		Tasks: registry,
		Build: pipeline.BuildStepSpec{
			Image: p.Image,
		},
		Test: pipeline.TestStepSpec{
			Stack:                   testStack,
			TestTaskName:            p.Test.Task.Name,
			Lifecycle:               lifecycle,
			DelegateStackManagement: p.Test.DelegateStackManagement,
			BeforeTest:              b.hook(name, "beforeTest", p.Test.BeforeTest).Hook(),
			AfterTest:               b.hook(name, "afterTest", p.Test.AfterTest).ResultHook(),
		},
	}

	if build := p.Build; build != nil {
		spec.Build.Build = &pipeline.BuildContext{
			ContextDir: build.Context,
			Dockerfile: build.Dockerfile,
			Tags:       build.Tags,
			BuildArgs:  build.BuildArgs,
			Labels:     build.Labels,
			Target:     build.Target,
			Pull:       build.Pull,
			NoCache:    build.NoCache,
		}
	}

	if onSuccess := p.OnSuccess; onSuccess != nil {
		spec.OnSuccess = pipeline.SuccessStepSpec{
			AdditionalTags: onSuccess.AdditionalTags,
			AfterSuccess:   b.hook(name, "afterSuccess", onSuccess.AfterSuccess).Hook(),
		}

		if save := onSuccess.Save; save != nil {
			spec.OnSuccess.Save = &pipeline.SaveTarget{
				Path:        save.OutputFile,
				Compression: pipeline.Compression(save.Compression),
			}
		}

		if publish := onSuccess.Publish; publish != nil {
			spec.OnSuccess.Publish = &pipeline.PublishTarget{
				Registry:   publish.Registry,
				Namespace:  publish.Namespace,
				Repository: publish.Repository,
				Tags:       publish.Tags,
				Auth:       convertAuth(publish.Auth),
			}
		}
	}

	if onFailure := p.OnFailure; onFailure != nil {
		spec.OnFailure = pipeline.FailureStepSpec{
			AdditionalTags:     onFailure.AdditionalTags,
			SaveFailureLogsDir: onFailure.SaveFailureLogsDir,
			Stack:              testStack,
			LogServices:        onFailure.FailureLogServices,
			LogTail:            onFailure.LogTail,
			AfterFailure:       b.hook(name, "afterFailure", onFailure.AfterFailure).Hook(),
		}
	}

	return spec, nil
}

// testTask runs the test command locally, or inside a container attached to the
// default network of the test stack if an image is given.
func (b *specBuilder) testTask(spec v1beta1.TaskSpec, stateDir string, stack *pipeline.StackSpec) pipeline.Task {
	env := testEnv(spec.Env, stateDir, stack)
	if spec.Image == "" {
		return task.NewCommandTask(spec.Name, spec.Command,
			task.WithDir(spec.WorkDir),
			task.WithGoTestJSON(spec.GoTestJSON),
			task.WithOutput(b.stdout, b.stderr),
			task.WithEnv(env, spec.EnvFiles...),
		)
	}

	container := runtime.ContainerSpec{
		Image:           spec.Image,
		ImagePullPolicy: b.pull,
		Command:         spec.Command,
		Args:            spec.Args,
		PWD:             spec.WorkDir,
		Volumes: []runtime.Volume{
			{HostPath: stateDir, Path: stateDir, ReadOnly: true},
		},
	}

	if stack != nil {
		container.Network = fmt.Sprintf("%s_default", stack.ProjectName)
	}

	return task.NewContainerTask(spec.Name, b.runtime, container,
		task.WithContainerGoTestJSON(spec.GoTestJSON),
		task.WithContainerOutput(b.stdout, b.stderr),
		task.WithContainerEnv(env, spec.EnvFiles...),
	)
}

// testEnv points the test code at the state file of its stack through the
// variables read by stackstate.FromEnv. Values of the task env take precedence.
func testEnv(taskEnv map[string]string, stateDir string, stack *pipeline.StackSpec) map[string]string {
	if stack == nil {
		return taskEnv
	}

	env := map[string]string{
		stackstate.EnvStateDir: stateDir,
		stackstate.EnvStack:    stack.Name,
	}

	maps.Copy(env, taskEnv)
	return env
}

func (b *specBuilder) hook(pipelineName, name string, spec *v1beta1.HookSpec) task.HookCommand {
	if spec == nil {
		return task.HookCommand{}
	}

	return task.HookCommand{
		Name:    name,
		Command: spec.Command,
		Env:     spec.Env,
		Stdout:  b.stdout,
		Stderr:  b.stderr,
		Logger:  b.logger.WithValues("pipeline", pipelineName),
	}
}

func convertStack(s v1beta1.StackSpec, stateDir string, lifecycle pipeline.Lifecycle) pipeline.StackSpec {
	stack := pipeline.StackSpec{
		Name:        s.Name,
		Files:       s.Files,
		ProjectName: s.ProjectName,
		EnvFiles:    s.EnvFiles,
		StateDir:    stateDir,
		Lifecycle:   lifecycle,
	}

	if wait := s.WaitForHealthy; wait != nil {
		stack.Wait = append(stack.Wait, convertWait(wait, pipeline.WaitStatusHealthy))
	}

	if wait := s.WaitForRunning; wait != nil {
		stack.Wait = append(stack.Wait, convertWait(wait, pipeline.WaitStatusRunning))
	}

	return stack
}

func convertWait(wait *v1beta1.WaitSpec, status pipeline.WaitStatus) pipeline.WaitSpec {
	return pipeline.WaitSpec{
		Services:     wait.Services,
		Timeout:      wait.Timeout.Duration,
		PollInterval: wait.PollInterval.Duration,
		Status:       status,
	}
}

func convertAuth(auth *v1beta1.AuthSpec) *pipeline.RegistryAuth {
	if auth == nil {
		return nil
	}

	password := auth.Password
	if auth.PasswordEnv != "" {
		password = os.Getenv(auth.PasswordEnv)
	}

	return &pipeline.RegistryAuth{
		Username: auth.Username,
		Password: password,
	}
}

// pipelineSecrets returns values which are masked in the output of a pipeline.
func pipelineSecrets(p v1beta1.Pipeline) []string {
	if p.OnSuccess == nil || p.OnSuccess.Publish == nil {
		return nil
	}

	if auth := convertAuth(p.OnSuccess.Publish.Auth); auth != nil {
		return []string{auth.Password}
	}

	return nil
}

// snapshotTail returns the largest failure log tail of the pipelines, logs kept
// after a stack teardown never need more lines than that.
func snapshotTail(pipelines []v1beta1.Pipeline) int {
	var tail int
	for _, p := range pipelines {
		if p.OnFailure != nil {
			tail = max(tail, p.OnFailure.LogTail)
		}
	}

	return tail
}
