package otelsetup

import (
	"maps"
	"os"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
)

const (
	CommandKey    = attribute.Key("stackpipe.command")
	CIProviderKey = attribute.Key("stackpipe.ci.provider")
)

// Environment variables set by the ci systems stackpipe is usually run from.
var ciProviders = []struct {
	env  string
	name string
}{
	{"GITHUB_ACTIONS", "github-actions"},
	{"GITLAB_CI", "gitlab-ci"},
	{"BUILDKITE", "buildkite"},
	{"JENKINS_URL", "jenkins"},
	{"CIRCLECI", "circleci"},
}

func (o *Options) resource() *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(o.ServiceName),
	}

	if o.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(o.ServiceVersion))
	}

	if o.Command != "" {
		attrs = append(attrs, CommandKey.String(o.Command))
	}

	if provider := detectCIProvider(os.LookupEnv); provider != "" {
		attrs = append(attrs, CIProviderKey.String(provider))
	}

	for _, k := range slices.Sorted(maps.Keys(o.ResourceAttributes)) {
		attrs = append(attrs, attribute.String(k, o.ResourceAttributes[k]))
	}

	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func detectCIProvider(lookup func(string) (string, bool)) string {
	for _, p := range ciProviders {
		if v, ok := lookup(p.env); ok && v != "" {
			return p.name
		}
	}

	return ""
}
