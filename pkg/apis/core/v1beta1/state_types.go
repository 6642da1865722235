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

// StackState is written once a stack is up and read by test code to discover
// dynamically published ports. Field names are a stable contract.
type StackState struct {
	StackName   string                  `json:"stackName"`
	ProjectName string                  `json:"projectName"`
	Lifecycle   string                  `json:"lifecycle"`
	Timestamp   string                  `json:"timestamp"`
	Services    map[string]ServiceState `json:"services"`
}

type ServiceState struct {
	ContainerID    string          `json:"containerId"`
	ContainerName  string          `json:"containerName"`
	State          string          `json:"state"`
	PublishedPorts []PublishedPort `json:"publishedPorts"`
}

type PublishedPort struct {
	Host      int    `json:"host"`
	Container int    `json:"container"`
	Protocol  string `json:"protocol"`
}
