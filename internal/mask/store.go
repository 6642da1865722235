package mask

import (
	"io"
	"sync"
)

var DefaultMask = []byte("***")

// NewSecretStore creates a store which replaces secrets with the given mask.
// DefaultMask is used if mask is empty.
func NewSecretStore(mask []byte) *SecretStore {
	if len(mask) == 0 {
		mask = DefaultMask
	}

	return &SecretStore{
		placeholder: mask,
	}
}

type SecretStore struct {
	mu          sync.RWMutex
	placeholder []byte
	secrets     [][]byte
}

// AddSecrets registers values which must never show up in output.
// Empty values are ignored.
func (s *SecretStore) AddSecrets(secrets ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, secret := range secrets {
		if secret == "" {
			continue
		}

		s.secrets = append(s.secrets, []byte(secret))
	}
}

func (s *SecretStore) mask(b []byte) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, secret := range s.secrets {
		b = replaceAll(b, secret, s.placeholder)
	}

	return b
}

// Writer masks each write before passing it to w. Secrets split across
// two writes are not detected, wrap w in a line writer to avoid that.
func (s *SecretStore) Writer(w io.Writer) io.Writer {
	return &maskedWriter{
		w:     w,
		store: s,
	}
}
