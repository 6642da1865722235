package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/patternmatcher/ignorefile"

	"github.com/raffis/stackpipe/internal/pipeline"
)

const dockerIgnoreFile = ".dockerignore"

// BuildImage builds the context directory and tags the result with every configured tag.
// The first tag names the returned reference.
func (s *Service) BuildImage(ctx context.Context, spec pipeline.BuildContext) (pipeline.ImageRef, error) {
	if len(spec.Tags) == 0 {
		return pipeline.ImageRef{}, newTypedError("build", spec.ContextDir, ErrorTypeReference, errors.New("at least one tag is required"))
	}

	name := spec.Tags[0]
	for _, tag := range spec.Tags {
		if _, err := normalizeTag(tag); err != nil {
			return pipeline.ImageRef{}, newTypedError("build", tag, ErrorTypeReference, err)
		}
	}

	buildContext, err := tarContext(spec.ContextDir)
	if err != nil {
		return pipeline.ImageRef{}, newTypedError("build", name, ErrorTypeIO, err)
	}

	defer func() {
		_ = buildContext.Close()
	}()

	dockerfile := spec.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	s.logger.V(1).Info("send build context to docker daemon", "context", spec.ContextDir, "dockerfile", dockerfile)
	resp, err := s.client.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:        spec.Tags,
		Dockerfile:  dockerfile,
		BuildArgs:   buildArgs(spec.BuildArgs),
		Labels:      spec.Labels,
		Target:      spec.Target,
		PullParent:  spec.Pull,
		NoCache:     spec.NoCache,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return pipeline.ImageRef{}, newError("build", name, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	var id string
	var auxErr error
	err = s.displayStream(resp.Body, func(msg jsonmessage.JSONMessage) {
		if v, err := decodeAuxID(msg); err != nil {
			auxErr = err
		} else if v != "" {
			id = v
		}
	})

	if err != nil {
		return pipeline.ImageRef{}, newTypedError("build", name, ErrorTypeBuild, err)
	}

	if auxErr != nil {
		s.logger.Error(auxErr, "failed to read image id from build output", "image", name)
	}

	return pipeline.ImageRef{
		ID:   id,
		Name: name,
	}, nil
}

func buildArgs(args map[string]string) map[string]*string {
	if len(args) == 0 {
		return nil
	}

	out := make(map[string]*string, len(args))
	for k, v := range args {
		value := v
		out[k] = &value
	}

	return out
}

func tarContext(dir string) (io.ReadCloser, error) {
	if dir == "" {
		dir = "."
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	excludes, err := readDockerIgnore(abs)
	if err != nil {
		return nil, err
	}

	r, err := archive.TarWithOptions(abs, &archive.TarOptions{
		ExcludePatterns: excludes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to archive build context `%s`: %w", dir, err)
	}

	return r, nil
}

func readDockerIgnore(dir string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, dockerIgnoreFile))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	defer func() {
		_ = f.Close()
	}()

	return ignorefile.ReadAll(f)
}
