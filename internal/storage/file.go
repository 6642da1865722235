package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

const DefaultFile = "stackpipe.yaml"

func WithFile() LookupHandler {
	return func(ctx context.Context, ref string) (io.Reader, error) {
		info, err := os.Stat(ref)
		if err != nil {
			return nil, err
		}

		if info.IsDir() {
			return nil, &os.PathError{Op: "lookup", Path: ref, Err: os.ErrInvalid}
		}

		return os.Open(ref)
	}
}

// WithDefaultFile looks up stackpipe.yaml in the given directory if no ref is given
// or the ref is a directory.
func WithDefaultFile(dir string) LookupHandler {
	return func(ctx context.Context, ref string) (io.Reader, error) {
		lookupDir := dir
		if ref != "" {
			info, err := os.Stat(ref)
			if err != nil {
				return nil, err
			}

			if !info.IsDir() {
				return nil, &os.PathError{Op: "lookup", Path: ref, Err: os.ErrInvalid}
			}

			lookupDir = ref
		}

		return os.Open(filepath.Join(lookupDir, DefaultFile))
	}
}
