package secret

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipherWithKey(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := testCipher(t)

	ciphertext, iv, err := c.Encrypt("sk-secret-key")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("sk-secret-key"), ciphertext)

	plaintext, err := c.Decrypt(ciphertext, iv)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-key", plaintext)
}

func TestStorageStringRoundTrip(t *testing.T) {
	c := testCipher(t)

	stored, err := c.EncryptToStorage("sk-secret-key")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(stored))

	plaintext, err := c.DecryptFromStorage(stored)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-key", plaintext)
}

func TestDecryptFromStorageRejectsBadInput(t *testing.T) {
	c := testCipher(t)

	_, err := c.DecryptFromStorage("sk-plaintext")
	assert.ErrorIs(t, err, ErrNotEncrypted)

	_, err = c.DecryptFromStorage("encrypted:missing-iv-part")
	assert.ErrorIs(t, err, ErrInvalidStorageString)

	_, err = c.DecryptFromStorage("encrypted:!!!:!!!")
	assert.ErrorIs(t, err, ErrInvalidStorageString)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	c := testCipher(t)
	stored, err := c.EncryptToStorage("sk-secret-key")
	require.NoError(t, err)

	other, err := NewCipherWithKey(bytes.Repeat([]byte{0x17}, 32))
	require.NoError(t, err)

	_, err = other.DecryptFromStorage(stored)
	assert.Error(t, err)
}

func TestNewCipherPersistsGeneratedKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "master.key")

	first, err := NewCipher(keyPath)
	require.NoError(t, err)
	stored, err := first.EncryptToStorage("sk-secret-key")
	require.NoError(t, err)

	// A second cipher loading the same key file can decrypt.
	second, err := NewCipher(keyPath)
	require.NoError(t, err)
	plaintext, err := second.DecryptFromStorage(stored)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-key", plaintext)
}
