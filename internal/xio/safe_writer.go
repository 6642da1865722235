package xio

import (
	"io"
	"sync"
)

// NewSafeWriter returns a writer which can be shared by concurrently running
// pipelines. Each Write reaches w in one piece.
func NewSafeWriter(w io.Writer) *SafeWriter {
	return &SafeWriter{
		w: w,
	}
}

type SafeWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *SafeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
