package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New("correct horse battery staple")
	require.NoError(t, err)

	cases := []string{
		"sk-proj-abc123",
		"AIzaSyD-short",
		"к",
		"a very long key string with spaces and юнікод symbols ▌",
	}
	for _, plaintext := range cases {
		ciphertext, err := v.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)
		assert.Equal(t, plaintext, v.Decrypt(ciphertext))
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	v, err := New("secret")
	require.NoError(t, err)

	a, err := v.Encrypt("same")
	require.NoError(t, err)
	b, err := v.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonce must differ between calls")
}

func TestDecryptFailureReturnsEmpty(t *testing.T) {
	v, err := New("secret")
	require.NoError(t, err)

	assert.Empty(t, v.Decrypt("not base64 at all!!"))
	assert.Empty(t, v.Decrypt("c2hvcnQ=")) // valid base64, too short for a nonce

	other, err := New("different key")
	require.NoError(t, err)
	ciphertext, err := other.Encrypt("sk-something")
	require.NoError(t, err)
	assert.Empty(t, v.Decrypt(ciphertext), "wrong key must not decrypt")
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestNewHexKey(t *testing.T) {
	hexKey := "6368616e676520746869732070617373776f726420746f206120736563726574"
	v, err := New(hexKey)
	require.NoError(t, err)

	ciphertext, err := v.Encrypt("value")
	require.NoError(t, err)
	assert.Equal(t, "value", v.Decrypt(ciphertext))
}
