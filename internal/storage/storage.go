package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	"github.com/raffis/stackpipe/pkg/apis/core/v1beta1"
)

var ErrUnsupportedKind = errors.New("unsupported kind")

type Interface interface {
	Lookup(ctx context.Context, ref string) (v1beta1.Pipeline, error)
}

type storage struct {
	handlers []LookupHandler
}

type LookupHandler func(ctx context.Context, ref string) (io.Reader, error)

func New(handlers ...LookupHandler) *storage {
	return &storage{
		handlers: handlers,
	}
}

// Lookup resolves a reference through the first handler able to open it and
// decodes it into a defaulted pipeline.
func (s *storage) Lookup(ctx context.Context, ref string) (v1beta1.Pipeline, error) {
	to := v1beta1.Pipeline{}
	var errs []error

	for _, handler := range s.handlers {
		r, err := handler(ctx, ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		manifest, err := io.ReadAll(r)
		if closer, ok := r.(io.Closer); ok {
			_ = closer.Close()
		}

		if err != nil {
			return to, err
		}

		to, err = Decode(manifest)
		if err != nil {
			return to, fmt.Errorf("failed to decode `%s`: %w", ref, err)
		}

		return to, nil
	}

	return to, fmt.Errorf("could not lookup ref: %s: %w", ref, errors.Join(errs...))
}

// Decode strictly decodes a yaml or json pipeline manifest and applies defaults.
func Decode(manifest []byte) (v1beta1.Pipeline, error) {
	to := v1beta1.Pipeline{}
	if err := yaml.UnmarshalStrict(manifest, &to); err != nil {
		return to, err
	}

	if to.APIVersion != v1beta1.GroupVersion || to.Kind != v1beta1.PipelineKind {
		return to, fmt.Errorf("%w: %s, %s", ErrUnsupportedKind, to.APIVersion, to.Kind)
	}

	to.SetDefaults()
	return to, nil
}
