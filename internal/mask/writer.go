package mask

import (
	"bytes"
	"io"
)

type maskedWriter struct {
	w     io.Writer
	store *SecretStore
}

func (w *maskedWriter) Write(b []byte) (int, error) {
	_, err := w.w.Write(w.store.mask(b))
	return len(b), err
}

func replaceAll(b, secret, placeholder []byte) []byte {
	if !bytes.Contains(b, secret) {
		return b
	}

	return bytes.ReplaceAll(b, secret, placeholder)
}
