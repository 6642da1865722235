package pipeline

import (
	"slices"
)

// ImageRef points to an image produced by the build step.
type ImageRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

func (r ImageRef) String() string {
	if r.Name != "" {
		return r.Name
	}

	return r.ID
}

// PipelineContext carries the state of one pipeline run from step to step.
// It is never mutated in place, every update returns a copy.
type PipelineContext struct {
	PipelineName string      `json:"pipelineName"`
	BuiltImage   *ImageRef   `json:"builtImage,omitempty"`
	TestResult   *TestResult `json:"testResult,omitempty"`
	AppliedTags  []string    `json:"appliedTags"`
}

func NewPipelineContext(name string) PipelineContext {
	return PipelineContext{
		PipelineName: name,
		AppliedTags:  []string{},
	}
}

func (c PipelineContext) WithBuiltImage(ref ImageRef) PipelineContext {
	copy := c.clone()
	copy.BuiltImage = &ref
	return copy
}

func (c PipelineContext) WithTestResult(result TestResult) PipelineContext {
	copy := c.clone()
	copy.TestResult = &result
	return copy
}

func (c PipelineContext) WithAppliedTags(tags ...string) PipelineContext {
	copy := c.clone()
	copy.AppliedTags = append(copy.AppliedTags, tags...)
	return copy
}

func (c PipelineContext) clone() PipelineContext {
	copy := c
	copy.AppliedTags = slices.Clone(c.AppliedTags)
	if copy.AppliedTags == nil {
		copy.AppliedTags = []string{}
	}

	return copy
}
