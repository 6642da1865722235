package image

import (
	"context"
	"errors"

	"github.com/distribution/reference"
	imagetypes "github.com/docker/docker/api/types/image"

	"github.com/raffis/stackpipe/internal/pipeline"
)

// PublishImage tags the image for the target repository and pushes every tag.
func (s *Service) PublishImage(ctx context.Context, ref pipeline.ImageRef, target pipeline.PublishTarget) error {
	if len(target.Tags) == 0 {
		return newTypedError("publish", ref.String(), ErrorTypeReference, errors.New("at least one tag is required"))
	}

	for _, tag := range target.Tags {
		named, err := publishReference(ref, target, tag)
		if err != nil {
			return newTypedError("publish", ref.String(), ErrorTypeReference, err)
		}

		if err := s.push(ctx, ref, named, target.Auth); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) push(ctx context.Context, source pipeline.ImageRef, named reference.NamedTagged, auth *pipeline.RegistryAuth) error {
	target := reference.FamiliarString(named)
	if err := s.client.ImageTag(ctx, sourceName(source), target); err != nil {
		return newError("publish", target, err)
	}

	registryAuth, err := EncodedAuth(named, auth, s.auth)
	if err != nil {
		return newTypedError("publish", target, ErrorTypeUnauthorized, err)
	}

	s.logger.Info("push image", "image", target)
	rc, err := s.client.ImagePush(ctx, target, imagetypes.PushOptions{
		RegistryAuth: registryAuth,
	})
	if err != nil {
		return newError("publish", target, err)
	}

	defer func() {
		_ = rc.Close()
	}()

	if err := s.displayStream(rc, nil); err != nil {
		return newError("publish", target, err)
	}

	return nil
}
