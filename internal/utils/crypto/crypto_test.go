package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		plaintext string
	}{
		{name: "short secret", secret: "s3cret", plaintext: "sk-test-123"},
		{name: "exact 32 byte secret", secret: strings.Repeat("k", 32), plaintext: "AIza-gemini-key"},
		{name: "long secret is truncated", secret: strings.Repeat("x", 64), plaintext: "sk-ant-api03"},
		{name: "empty plaintext", secret: "s3cret", plaintext: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := EncryptString(tt.secret, tt.plaintext)
			require.NoError(t, err)
			assert.NotEqual(t, tt.plaintext, sealed)

			opened, err := DecryptString(tt.secret, sealed)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, opened)
		})
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	a, err := EncryptString("s3cret", "same")
	require.NoError(t, err)
	b, err := EncryptString("s3cret", "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptFailures(t *testing.T) {
	sealed, err := EncryptString("right", "payload")
	require.NoError(t, err)

	_, err = DecryptString("wrong", sealed)
	assert.Error(t, err)

	_, err = DecryptString("", sealed)
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = DecryptString("right", "AAAA")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = DecryptString("right", "not base64 !!")
	assert.Error(t, err)
}
