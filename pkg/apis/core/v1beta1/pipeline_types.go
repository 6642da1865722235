/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1beta1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	Group        = "stackpipe.raffis.github.io"
	Version      = "v1beta1"
	GroupVersion = Group + "/" + Version
	PipelineKind = "Pipeline"
)

type Pipeline struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	PipelineSpec `json:",inline"`
}

type PipelineSpec struct {
	Name      string       `json:"name,omitempty"`
	Image     string       `json:"image,omitempty"`
	Build     *BuildSpec   `json:"build,omitempty"`
	Stacks    []StackSpec  `json:"stacks,omitempty"`
	Test      TestSpec     `json:"test,omitempty"`
	OnSuccess *SuccessSpec `json:"onSuccess,omitempty"`
	OnFailure *FailureSpec `json:"onFailure,omitempty"`
	StateDir  string       `json:"stateDir,omitempty"`
}

type BuildSpec struct {
	Context    string            `json:"context,omitempty"`
	Dockerfile string            `json:"dockerfile,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	BuildArgs  map[string]string `json:"buildArgs,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	Target     string            `json:"target,omitempty"`
	Pull       bool              `json:"pull,omitempty"`
	NoCache    bool              `json:"noCache,omitempty"`
}

type StackSpec struct {
	Name           string    `json:"name,omitempty"`
	Files          []string  `json:"files,omitempty"`
	ProjectName    string    `json:"projectName,omitempty"`
	EnvFiles       []string  `json:"envFiles,omitempty"`
	WaitForHealthy *WaitSpec `json:"waitForHealthy,omitempty"`
	WaitForRunning *WaitSpec `json:"waitForRunning,omitempty"`
}

type WaitSpec struct {
	Services     []string        `json:"services,omitempty"`
	Timeout      metav1.Duration `json:"timeout,omitempty"`
	PollInterval metav1.Duration `json:"pollInterval,omitempty"`
}

type Lifecycle string

var (
	LifecycleClass  Lifecycle = "class"
	LifecycleMethod Lifecycle = "method"
)

type TestSpec struct {
	Stack                   string    `json:"stack,omitempty"`
	Task                    TaskSpec  `json:"task,omitempty"`
	Lifecycle               Lifecycle `json:"lifecycle,omitempty"`
	DelegateStackManagement bool      `json:"delegateStackManagement,omitempty"`
	BeforeTest              *HookSpec `json:"beforeTest,omitempty"`
	AfterTest               *HookSpec `json:"afterTest,omitempty"`
}

type TaskSpec struct {
	Name       string            `json:"name,omitempty"`
	Command    []string          `json:"command,omitempty"`
	Image      string            `json:"image,omitempty"`
	Args       []string          `json:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	EnvFiles   []string          `json:"envFiles,omitempty"`
	WorkDir    string            `json:"workDir,omitempty"`
	GoTestJSON bool              `json:"goTestJSON,omitempty"`
}

type SuccessSpec struct {
	AdditionalTags []string     `json:"additionalTags,omitempty"`
	Save           *SaveSpec    `json:"save,omitempty"`
	Publish        *PublishSpec `json:"publish,omitempty"`
	AfterSuccess   *HookSpec    `json:"afterSuccess,omitempty"`
}

type FailureSpec struct {
	AdditionalTags     []string  `json:"additionalTags,omitempty"`
	SaveFailureLogsDir string    `json:"saveFailureLogsDir,omitempty"`
	FailureLogServices []string  `json:"failureLogServices,omitempty"`
	LogTail            int       `json:"logTail,omitempty"`
	AfterFailure       *HookSpec `json:"afterFailure,omitempty"`
}

type Compression string

var (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

type SaveSpec struct {
	OutputFile  string      `json:"outputFile,omitempty"`
	Compression Compression `json:"compression,omitempty"`
}

type PublishSpec struct {
	Registry   string    `json:"registry,omitempty"`
	Namespace  string    `json:"namespace,omitempty"`
	Repository string    `json:"repository,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Auth       *AuthSpec `json:"auth,omitempty"`
}

type AuthSpec struct {
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	PasswordEnv string `json:"passwordEnv,omitempty"`
}

type HookSpec struct {
	Command []string          `json:"command,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}
