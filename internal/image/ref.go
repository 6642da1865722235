package image

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"

	"github.com/raffis/stackpipe/internal/pipeline"
)

// normalizeTag parses a fully qualified image reference, a missing tag defaults to latest.
func normalizeTag(s string) (reference.NamedTagged, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference `%s`: %w", s, err)
	}

	if _, ok := named.(reference.Digested); ok {
		return nil, fmt.Errorf("image reference `%s` must not contain a digest", s)
	}

	return reference.TagNameOnly(named).(reference.NamedTagged), nil
}

// resolveTag expands a bare tag like `tested` against the repository of the source image.
// Anything containing a repository part is taken as is.
func resolveTag(source pipeline.ImageRef, tag string) (string, error) {
	if strings.ContainsAny(tag, "/:@") {
		ref, err := normalizeTag(tag)
		if err != nil {
			return "", err
		}

		return reference.FamiliarString(ref), nil
	}

	if source.Name == "" {
		return "", fmt.Errorf("can not resolve tag `%s` without an image name", tag)
	}

	named, err := reference.ParseNormalizedNamed(source.Name)
	if err != nil {
		return "", fmt.Errorf("invalid image reference `%s`: %w", source.Name, err)
	}

	tagged, err := reference.WithTag(reference.TrimNamed(named), tag)
	if err != nil {
		return "", fmt.Errorf("invalid tag `%s`: %w", tag, err)
	}

	return reference.FamiliarString(tagged), nil
}

// publishReference composes registry, namespace and repository into a tagged reference.
// An empty repository falls back to the repository name of the source image.
func publishReference(source pipeline.ImageRef, target pipeline.PublishTarget, tag string) (reference.NamedTagged, error) {
	repository := target.Repository
	if repository == "" {
		named, err := reference.ParseNormalizedNamed(source.Name)
		if err != nil {
			return nil, fmt.Errorf("no repository configured and source image `%s` is not a valid reference: %w", source.Name, err)
		}

		path := reference.Path(named)
		repository = path[strings.LastIndex(path, "/")+1:]
	}

	var parts []string
	for _, part := range []string{target.Registry, target.Namespace, repository} {
		if part = strings.Trim(part, "/"); part != "" {
			parts = append(parts, part)
		}
	}

	named, err := reference.ParseNormalizedNamed(strings.Join(parts, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid publish target `%s`: %w", strings.Join(parts, "/"), err)
	}

	return reference.WithTag(named, tag)
}

func sourceName(ref pipeline.ImageRef) string {
	if ref.ID != "" {
		return ref.ID
	}

	return ref.Name
}
