package v1beta1

import (
	"slices"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

const (
	DefaultTaskName        = "test"
	DefaultStateDir        = ".stackpipe"
	DefaultLogTail         = 1000
	DefaultWaitTimeout     = 60 * time.Second
	DefaultWaitPollInteval = 2 * time.Second
)

func (p *Pipeline) SetDefaults() {
	if p.PipelineSpec.Name == "" {
		p.PipelineSpec.Name = p.ObjectMeta.Name
	}

	if p.StateDir == "" {
		p.StateDir = DefaultStateDir
	}

	if p.Build != nil {
		if p.Build.Context == "" {
			p.Build.Context = "."
		}

		if p.Build.Dockerfile == "" {
			p.Build.Dockerfile = "Dockerfile"
		}

		if len(p.Build.Tags) == 0 && p.Image != "" {
			p.Build.Tags = []string{p.Image}
		}
	}

	for i := range p.Stacks {
		p.Stacks[i].SetDefaults()
	}

	if p.Test.Lifecycle == "" {
		p.Test.Lifecycle = LifecycleClass
	}

	p.Test.Lifecycle = Lifecycle(strings.ToLower(string(p.Test.Lifecycle)))

	if p.Test.Task.Name == "" {
		p.Test.Task.Name = DefaultTaskName
	}

	if p.OnSuccess != nil && p.OnSuccess.Save != nil && p.OnSuccess.Save.Compression == "" {
		p.OnSuccess.Save.Compression = CompressionNone
	}

	if p.OnFailure != nil && p.OnFailure.LogTail == 0 {
		p.OnFailure.LogTail = DefaultLogTail
	}
}

func (s *StackSpec) SetDefaults() {
	if s.ProjectName == "" {
		s.ProjectName = strings.ToLower(s.Name)
	}

	for _, wait := range []*WaitSpec{s.WaitForHealthy, s.WaitForRunning} {
		if wait == nil {
			continue
		}

		if wait.Timeout.Duration == 0 {
			wait.Timeout.Duration = DefaultWaitTimeout
		}

		if wait.PollInterval.Duration == 0 {
			wait.PollInterval.Duration = DefaultWaitPollInteval
		}
	}
}

// Stack returns the stack declared under the given name.
func (p *Pipeline) Stack(name string) (StackSpec, bool) {
	for _, stack := range p.Stacks {
		if stack.Name == name {
			return stack, true
		}
	}

	return StackSpec{}, false
}

// Validate expects SetDefaults to have been called.
func (p *Pipeline) Validate() error {
	return p.ValidateFields().ToAggregate()
}

func (p *Pipeline) ValidateFields() field.ErrorList {
	var errs field.ErrorList

	if p.PipelineSpec.Name == "" {
		errs = append(errs, field.Required(field.NewPath("name"), "pipeline name is required"))
	}

	if p.Image == "" && p.Build == nil {
		errs = append(errs, field.Required(field.NewPath("image"), "either image or build is required"))
	}

	if p.Build != nil && len(p.Build.Tags) == 0 {
		errs = append(errs, field.Required(field.NewPath("build", "tags"), "build requires at least one tag"))
	}

	var names []string
	for i, stack := range p.Stacks {
		path := field.NewPath("stacks").Index(i)
		if stack.Name == "" {
			errs = append(errs, field.Required(path.Child("name"), ""))
		}

		if slices.Contains(names, stack.Name) {
			errs = append(errs, field.Duplicate(path.Child("name"), stack.Name))
		}

		if len(stack.Files) == 0 {
			errs = append(errs, field.Required(path.Child("files"), "at least one compose file is required"))
		}

		names = append(names, stack.Name)
	}

	test := field.NewPath("test")
	switch p.Test.Lifecycle {
	case LifecycleClass, LifecycleMethod:
	default:
		errs = append(errs, field.NotSupported(test.Child("lifecycle"), p.Test.Lifecycle, []Lifecycle{LifecycleClass, LifecycleMethod}))
	}

	if p.Test.Stack != "" && !slices.Contains(names, p.Test.Stack) {
		errs = append(errs, field.NotFound(test.Child("stack"), p.Test.Stack))
	}

	delegated := p.Test.Lifecycle == LifecycleMethod || p.Test.DelegateStackManagement
	if p.Test.Stack == "" && !delegated {
		errs = append(errs, field.Required(test.Child("stack"), "stack is required unless stack management is delegated"))
	}

	task := test.Child("task")
	if len(p.Test.Task.Command) == 0 && p.Test.Task.Image == "" {
		errs = append(errs, field.Required(task, "task requires either command or image"))
	}

	if p.OnSuccess != nil {
		onSuccess := field.NewPath("onSuccess")
		if save := p.OnSuccess.Save; save != nil {
			if save.OutputFile == "" {
				errs = append(errs, field.Required(onSuccess.Child("save", "outputFile"), ""))
			}

			switch save.Compression {
			case CompressionNone, CompressionGzip, CompressionZstd:
			default:
				errs = append(errs, field.NotSupported(onSuccess.Child("save", "compression"), save.Compression, []Compression{CompressionNone, CompressionGzip, CompressionZstd}))
			}
		}

		if publish := p.OnSuccess.Publish; publish != nil && len(publish.Tags) == 0 {
			errs = append(errs, field.Required(onSuccess.Child("publish", "tags"), "at least one tag is required"))
		}
	}

	if p.OnFailure != nil && p.OnFailure.LogTail < 0 {
		errs = append(errs, field.Invalid(field.NewPath("onFailure", "logTail"), p.OnFailure.LogTail, "must not be negative"))
	}

	return errs
}
