package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/go-logr/logr"
	"github.com/moby/term"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/strings/slices"

	"github.com/raffis/stackpipe/internal/image"
)

// Client is the subset of the docker engine api needed to run containers.
type Client interface {
	ContainerCreate(ctx context.Context, config *dockercontainer.Config, hostConfig *dockercontainer.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (dockercontainer.CreateResponse, error)
	ContainerAttach(ctx context.Context, container string, options dockercontainer.AttachOptions) (types.HijackedResponse, error)
	ContainerStart(ctx context.Context, container string, options dockercontainer.StartOptions) error
	ContainerWait(ctx context.Context, container string, condition dockercontainer.WaitCondition) (<-chan dockercontainer.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, container string, options dockercontainer.RemoveOptions) error
	ImageList(ctx context.Context, options imagetypes.ListOptions) ([]imagetypes.Summary, error)
	ImagePull(ctx context.Context, ref string, options imagetypes.PullOptions) (io.ReadCloser, error)
}

var _ Client = &dockerclient.Client{}

type dockerOption func(*docker)

func WithLogger(logger logr.Logger) dockerOption {
	return func(d *docker) {
		d.logger = logger
	}
}

func WithHidePullOutput(hide bool) dockerOption {
	return func(d *docker) {
		d.hidePullOutput = hide
	}
}

func WithAuthStore(store image.AuthStore) dockerOption {
	return func(d *docker) {
		d.auth = store
	}
}

type docker struct {
	client         Client
	logger         logr.Logger
	auth           image.AuthStore
	hidePullOutput bool
}

func NewDocker(client Client, opts ...dockerOption) *docker {
	d := &docker{
		client: client,
		logger: logr.Discard(),
	}

	for _, o := range opts {
		o(d)
	}

	if d.auth == nil {
		d.auth = image.DefaultAuthStore()
	}

	return d
}

func (d *docker) RemoveContainer(ctx context.Context, containerID string) error {
	return d.client.ContainerRemove(ctx, containerID, dockercontainer.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
}

func (d *docker) RunContainer(ctx context.Context, spec ContainerSpec, stdout, stderr io.Writer) (Await, error) {
	logger := d.logger.WithValues("container", spec.Name, "image", spec.Image)

	pullImage := false
	switch spec.ImagePullPolicy {
	case PullImagePolicyAlways:
		pullImage = true
	case PullImagePolicyNever:
		pullImage = false
	default:
		has, err := d.hasImage(ctx, spec.Image)
		if err != nil {
			return nil, err
		}

		pullImage = !has
	}

	if pullImage {
		logger.V(1).Info("pulling image")

		startedAt := time.Now()
		if err := d.pullImage(ctx, spec.Image, stderr); err != nil {
			return nil, fmt.Errorf("failed to pull image `%s`: %w", spec.Image, err)
		}

		logger.V(1).Info("image pulled", "duration", time.Since(startedAt))
	}

	createResponse, err := d.createContainer(ctx, logger, spec)
	if err != nil {
		return nil, err
	}

	waitC, errC := d.client.ContainerWait(ctx, createResponse.ID, dockercontainer.WaitConditionNextExit)
	streams, err := d.client.ContainerAttach(ctx, createResponse.ID, dockercontainer.AttachOptions{
		Stdout: true,
		Stderr: true,
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("container attach failed: %w", err)
	}

	if err := d.client.ContainerStart(ctx, createResponse.ID, dockercontainer.StartOptions{}); err != nil {
		streams.Close()
		return nil, fmt.Errorf("failed to start container %s: %w", spec.Name, err)
	}

	if stdout == nil {
		stdout = io.Discard
	}

	if stderr == nil {
		stderr = io.Discard
	}

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		_, err := stdcopy.StdCopy(stdout, stderr, streams.Reader)
		if err != nil {
			return fmt.Errorf("demux container streams failed: %w", err)
		}

		return nil
	})

	wg.Go(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errC:
			if err != nil {
				return fmt.Errorf("failed to wait for container: %w", err)
			}

			return nil
		case await := <-waitC:
			if await.Error != nil && await.Error.Message != "" {
				return errors.New(await.Error.Message)
			}

			if await.StatusCode > 0 {
				return &Result{
					ExitCode: int(await.StatusCode),
				}
			}

			return nil
		}
	})

	return &await{
		id:      createResponse.ID,
		wg:      wg,
		streams: streams,
	}, nil
}

type await struct {
	id      string
	streams types.HijackedResponse
	wg      *errgroup.Group
}

func (a *await) ContainerID() string {
	return a.id
}

func (a *await) Wait() error {
	defer a.streams.Close()
	return a.wg.Wait()
}

func (d *docker) hasImage(ctx context.Context, image string) (bool, error) {
	images, err := d.client.ImageList(ctx, imagetypes.ListOptions{})
	if err != nil {
		return false, err
	}

	for _, img := range images {
		if slices.Contains(img.RepoTags, image) {
			return true, nil
		}
	}

	return false, nil
}

func (d *docker) pullImage(ctx context.Context, ref string, w io.Writer) error {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return err
	}

	encodedAuth, err := image.EncodedAuth(named, nil, d.auth)
	if err != nil {
		return err
	}

	r, err := d.client.ImagePull(ctx, reference.FamiliarString(reference.TagNameOnly(named)), imagetypes.PullOptions{
		RegistryAuth: encodedAuth,
	})
	if err != nil {
		return err
	}

	defer func() {
		_ = r.Close()
	}()

	if d.hidePullOutput || w == nil {
		w = io.Discard
	}

	termFd, isTerm := term.GetFdInfo(w)
	return jsonmessage.DisplayJSONMessagesStream(r, w, termFd, isTerm, nil)
}

func (d *docker) createContainer(ctx context.Context, logger logr.Logger, spec ContainerSpec) (*dockercontainer.CreateResponse, error) {
	containerConfig := dockercontainer.Config{
		Image:      spec.Image,
		Cmd:        strslice.StrSlice(spec.Args),
		Env:        spec.Env,
		WorkingDir: spec.PWD,
	}

	if len(spec.Command) > 0 {
		containerConfig.Entrypoint = strslice.StrSlice(spec.Command)
	}

	mounts := []mount.Mount{}
	for _, volume := range spec.Volumes {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   volume.HostPath,
			Target:   volume.Path,
			ReadOnly: volume.ReadOnly,
		})
	}

	hostConfig := dockercontainer.HostConfig{
		Mounts: mounts,
	}

	netConfig := network.NetworkingConfig{
		EndpointsConfig: make(map[string]*network.EndpointSettings),
	}

	if spec.Network != "" {
		hostConfig.NetworkMode = dockercontainer.NetworkMode(spec.Network)
		netConfig.EndpointsConfig[spec.Network] = &network.EndpointSettings{}
	}

	logger.V(3).Info("create new container", "container-spec", containerConfig, "host-config", hostConfig, "network-config", netConfig)
	cont, err := d.client.ContainerCreate(ctx, &containerConfig, &hostConfig, &netConfig, nil, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container %s: %w", spec.Name, err)
	}

	return &cont, nil
}
