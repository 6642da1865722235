package xio

import (
	"bytes"
	"io"
)

// NewLineWriter returns a writer which passes only complete lines to w, each
// line in a single Write call and starting with prefix.
func NewLineWriter(w io.Writer, prefix []byte) *LineWriter {
	return &LineWriter{
		w:      w,
		prefix: prefix,
	}
}

type LineWriter struct {
	w      io.Writer
	prefix []byte
	buf    []byte
}

func (w *LineWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			w.buffer(p)
			break
		}

		w.buffer(p[:i+1])
		p = p[i+1:]

		if err := w.emit(); err != nil {
			return n - len(p), err
		}
	}

	return n, nil
}

// Flush writes a pending partial line.
func (w *LineWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}

	return w.emit()
}

func (w *LineWriter) buffer(p []byte) {
	if len(w.buf) == 0 {
		w.buf = append(w.buf, w.prefix...)
	}

	w.buf = append(w.buf, p...)
}

func (w *LineWriter) emit() error {
	_, err := w.w.Write(w.buf)
	w.buf = w.buf[:0]
	return err
}
