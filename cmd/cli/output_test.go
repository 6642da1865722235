package main

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raffis/stackpipe/internal/mask"
	"github.com/raffis/stackpipe/pkg/apis/core/v1beta1"
)

func TestPipelineOutput(t *testing.T) {
	tests := []struct {
		name     string
		prefix   bool
		expected string
	}{
		{
			name:     "plain",
			expected: "logging in with ***\npartial",
		},
		{
			name:     "prefixed",
			prefix:   true,
			expected: "api | logging in with ***\napi | partial",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secrets := mask.NewSecretStore(nil)
			secrets.AddSecrets("hunter2")

			var stdout, stderr bytes.Buffer
			output := newPipelineOutput("api", &stdout, &stderr, tt.prefix, secrets)

			fmt.Fprint(output.stdout, "logging in with hun")
			fmt.Fprint(output.stdout, "ter2\npartial")
			assert.NotContains(t, stdout.String(), "partial")

			output.Flush()
			assert.Equal(t, tt.expected, stdout.String())
			assert.Empty(t, stderr.String())
		})
	}
}

func TestPipelineSecrets(t *testing.T) {
	t.Setenv("REGISTRY_PASSWORD", "from-env")

	p := testPipeline()
	assert.Equal(t, []string{""}, pipelineSecrets(p))

	p.OnSuccess.Publish.Auth = &v1beta1.AuthSpec{Username: "ci", PasswordEnv: "REGISTRY_PASSWORD"}
	assert.Equal(t, []string{"from-env"}, pipelineSecrets(p))

	p.OnSuccess = nil
	assert.Nil(t, pipelineSecrets(p))
}
