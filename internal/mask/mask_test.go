package mask

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskedWriter(t *testing.T) {
	tests := []struct {
		name     string
		mask     []byte
		secrets  []string
		input    string
		expected string
	}{
		{
			name:     "no secrets",
			input:    "login succeeded\n",
			expected: "login succeeded\n",
		},
		{
			name:     "default mask",
			secrets:  []string{"hunter2"},
			input:    "password=hunter2 again hunter2\n",
			expected: "password=*** again ***\n",
		},
		{
			name:     "custom mask",
			mask:     []byte("[masked]"),
			secrets:  []string{"s3cr3t", "token"},
			input:    "s3cr3t token\n",
			expected: "[masked] [masked]\n",
		},
		{
			name:     "empty secret is ignored",
			secrets:  []string{""},
			input:    "abc\n",
			expected: "abc\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewSecretStore(tt.mask)
			store.AddSecrets(tt.secrets...)

			var buf bytes.Buffer
			n, err := store.Writer(&buf).Write([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, len(tt.input), n)
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestSecretsAddedLater(t *testing.T) {
	store := NewSecretStore(nil)
	var buf bytes.Buffer
	w := store.Writer(&buf)

	_, _ = w.Write([]byte("token\n"))
	store.AddSecrets("token")
	_, _ = w.Write([]byte("token\n"))

	assert.Equal(t, "token\n***\n", buf.String())
}
