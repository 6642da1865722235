package image

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/build"
	imagetypes "github.com/docker/docker/api/types/image"
	dockerclient "github.com/docker/docker/client"
)

// Client is the subset of the docker engine api the image service depends on.
type Client interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, image string, options imagetypes.PushOptions) (io.ReadCloser, error)
	ImageSave(ctx context.Context, images []string, opts ...dockerclient.ImageSaveOption) (io.ReadCloser, error)
}

var _ Client = &dockerclient.Client{}
