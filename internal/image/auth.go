package image

import (
	"fmt"
	"io"

	"github.com/distribution/reference"
	"github.com/docker/cli/cli/config"
	clitypes "github.com/docker/cli/cli/config/types"
	"github.com/docker/docker/api/types/registry"

	"github.com/raffis/stackpipe/internal/pipeline"
)

const dockerHubAuthKey = "https://index.docker.io/v1/"

// AuthStore resolves stored credentials for a registry host, usually the docker cli config.
type AuthStore interface {
	GetAuthConfig(registryHostname string) (clitypes.AuthConfig, error)
}

func DefaultAuthStore() AuthStore {
	return config.LoadDefaultConfigFile(io.Discard)
}

func authConfigKey(ref reference.Named) string {
	domain := reference.Domain(ref)
	if domain == "docker.io" || domain == "index.docker.io" {
		return dockerHubAuthKey
	}

	return domain
}

// EncodedAuth prefers explicit credentials over the auth store.
func EncodedAuth(ref reference.Named, explicit *pipeline.RegistryAuth, store AuthStore) (string, error) {
	key := authConfigKey(ref)

	var authConfig registry.AuthConfig
	switch {
	case explicit != nil && explicit.Username != "":
		authConfig = registry.AuthConfig{
			Username:      explicit.Username,
			Password:      explicit.Password,
			ServerAddress: key,
		}
	case store != nil:
		stored, err := store.GetAuthConfig(key)
		if err != nil {
			return "", fmt.Errorf("failed to lookup credentials for `%s`: %w", key, err)
		}

		authConfig = registry.AuthConfig{
			Username:      stored.Username,
			Password:      stored.Password,
			Auth:          stored.Auth,
			ServerAddress: stored.ServerAddress,
			IdentityToken: stored.IdentityToken,
			RegistryToken: stored.RegistryToken,
		}
	}

	return registry.EncodeAuthConfig(authConfig)
}
