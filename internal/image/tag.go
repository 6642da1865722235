package image

import (
	"context"

	"github.com/raffis/stackpipe/internal/pipeline"
)

func (s *Service) TagImage(ctx context.Context, source pipeline.ImageRef, tags []string) error {
	for _, tag := range tags {
		target, err := resolveTag(source, tag)
		if err != nil {
			return newTypedError("tag", source.String(), ErrorTypeReference, err)
		}

		s.logger.V(1).Info("tag image", "source", source.String(), "target", target)
		if err := s.client.ImageTag(ctx, sourceName(source), target); err != nil {
			return newError("tag", source.String(), err)
		}
	}

	return nil
}
