package image

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/raffis/stackpipe/internal/pipeline"
)

// SaveImage exports the image as a docker archive. The file only appears once it is complete.
func (s *Service) SaveImage(ctx context.Context, ref pipeline.ImageRef, target pipeline.SaveTarget) error {
	if target.Path == "" {
		return newTypedError("save", ref.String(), ErrorTypeIO, fmt.Errorf("output file is required"))
	}

	rc, err := s.client.ImageSave(ctx, []string{ref.String()})
	if err != nil {
		return newError("save", ref.String(), err)
	}

	defer func() {
		_ = rc.Close()
	}()

	if err := writeArchive(rc, target); err != nil {
		return newTypedError("save", ref.String(), ErrorTypeIO, err)
	}

	s.logger.V(1).Info("image saved", "image", ref.String(), "path", target.Path, "compression", target.Compression)
	return nil
}

func writeArchive(r io.Reader, target pipeline.SaveTarget) error {
	dir := filepath.Dir(target.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".stackpipe-save-*")
	if err != nil {
		return err
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	w, err := compressWriter(tmp, target.Compression)
	if err != nil {
		_ = tmp.Close()
		return err
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write image archive: %w", err)
	}

	if err := w.Close(); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), target.Path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

func compressWriter(w io.Writer, compression pipeline.Compression) (io.WriteCloser, error) {
	switch compression {
	case pipeline.CompressionNone, "":
		return nopWriteCloser{w}, nil
	case pipeline.CompressionGzip:
		return gzip.NewWriter(w), nil
	case pipeline.CompressionZstd:
		return zstd.NewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported compression `%s`", compression)
	}
}
