package image

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	clitypes "github.com/docker/cli/cli/config/types"
	"github.com/docker/docker/api/types/build"
	imagetypes "github.com/docker/docker/api/types/image"
	dockerclient "github.com/docker/docker/client"
)

type mockClient struct {
	mu          sync.Mutex
	buildStream string
	buildErr    error
	buildOpts   build.ImageBuildOptions
	buildSize   int
	tagErr      error
	tags        [][2]string
	pushStream  string
	pushErr     error
	pushed      []string
	pushOpts    []imagetypes.PushOptions
	saveData    string
	saveErr     error
	saved       []string
}

func (m *mockClient) ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error) {
	if m.buildErr != nil {
		return build.ImageBuildResponse{}, m.buildErr
	}

	b, err := io.ReadAll(buildContext)
	if err != nil {
		return build.ImageBuildResponse{}, err
	}

	m.buildSize = len(b)
	m.buildOpts = options
	return build.ImageBuildResponse{
		Body: io.NopCloser(bytes.NewBufferString(m.buildStream)),
	}, nil
}

func (m *mockClient) ImageTag(ctx context.Context, source, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = append(m.tags, [2]string{source, target})
	return m.tagErr
}

func (m *mockClient) ImagePush(ctx context.Context, image string, options imagetypes.PushOptions) (io.ReadCloser, error) {
	if m.pushErr != nil {
		return nil, m.pushErr
	}

	m.pushed = append(m.pushed, image)
	m.pushOpts = append(m.pushOpts, options)
	return io.NopCloser(bytes.NewBufferString(m.pushStream)), nil
}

func (m *mockClient) ImageSave(ctx context.Context, images []string, opts ...dockerclient.ImageSaveOption) (io.ReadCloser, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}

	m.saved = append(m.saved, images...)
	return io.NopCloser(bytes.NewBufferString(m.saveData)), nil
}

type mockAuthStore struct {
	configs map[string]clitypes.AuthConfig
	keys    []string
}

func (m *mockAuthStore) GetAuthConfig(registryHostname string) (clitypes.AuthConfig, error) {
	m.keys = append(m.keys, registryHostname)
	if m.configs == nil {
		return clitypes.AuthConfig{}, errors.New("no credentials store")
	}

	return m.configs[registryHostname], nil
}
