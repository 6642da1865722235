package otelsetup

import (
	"context"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlags(t *testing.T) {
	o := DefaultOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{"--otel-endpoint=collector:4317", "--otel-insecure"}))
	assert.Equal(t, "collector:4317", o.Endpoint)
	assert.True(t, o.Insecure)
	assert.Equal(t, "stackpipe", o.ServiceName)
	assert.True(t, o.Enabled())
}

func TestBuildDisabled(t *testing.T) {
	p, err := DefaultOptions().Build(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p.Tracer)
	assert.Nil(t, p.Meter)
	assert.Nil(t, p.Logger)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestBuildStdout(t *testing.T) {
	o := DefaultOptions()
	o.Stdout = true

	p, err := o.Build(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, p.Tracer)
	assert.NotNil(t, p.Meter)
	assert.NotNil(t, p.Logger)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestTLSConfig(t *testing.T) {
	o := DefaultOptions()
	cfg, err := o.getTLSConfig()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	o.CAFile = "/does/not/exist/ca.pem"
	_, err = o.getTLSConfig()
	assert.Error(t, err)
}

func TestResource(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("GITLAB_CI", "true")

	o := DefaultOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--otel-resource-attributes=vcs.ref=main,ci.pipeline.id=42"}))
	o.ServiceVersion = "v0.3.0"
	o.Command = "run"

	attrs := map[string]string{}
	for _, kv := range o.resource().Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}

	assert.Equal(t, map[string]string{
		"service.name":          "stackpipe",
		"service.version":       "v0.3.0",
		"stackpipe.command":     "run",
		"stackpipe.ci.provider": "gitlab-ci",
		"vcs.ref":               "main",
		"ci.pipeline.id":        "42",
	}, attrs)
}

func TestDetectCIProvider(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected string
	}{
		{
			name:     "none",
			expected: "",
		},
		{
			name:     "github actions",
			env:      map[string]string{"GITHUB_ACTIONS": "true"},
			expected: "github-actions",
		},
		{
			name:     "empty value is ignored",
			env:      map[string]string{"GITHUB_ACTIONS": "", "JENKINS_URL": "https://jenkins"},
			expected: "jenkins",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				v, ok := test.env[k]
				return v, ok
			}

			assert.Equal(t, test.expected, detectCIProvider(lookup))
		})
	}
}
