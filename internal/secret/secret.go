// Package secret wraps API keys with AES-256-GCM before they reach the
// settings store and unwraps them on the way back.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

const keySize = 32

// StoragePrefix marks a settings value as holding wrapped ciphertext.
const StoragePrefix = "encrypted:"

var (
	// ErrInvalidStorageString is returned when a stored secret does not
	// have the expected "<ciphertext>:<iv>" layout.
	ErrInvalidStorageString = errors.New("invalid secret storage format")
	// ErrNotEncrypted is returned when a stored value lacks the storage prefix.
	ErrNotEncrypted = errors.New("stored value is not encrypted")
)

// Cipher encrypts and decrypts short secrets with a device-local key.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher loads the master key from keyPath, generating and persisting a
// fresh one on first use.
func NewCipher(keyPath string) (*Cipher, error) {
	key, err := loadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}
	return NewCipherWithKey(key)
}

// NewCipherWithKey builds a Cipher from raw key material. Used by tests.
func NewCipherWithKey(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != keySize {
			return nil, fmt.Errorf("key file %q is corrupt: expected %d bytes, got %d", path, keySize, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key = make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist key file: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext and returns the ciphertext together with the
// nonce used as IV.
func (c *Cipher) Encrypt(plaintext string) (ciphertext, iv []byte, err error) {
	iv = make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext = c.aead.Seal(nil, iv, []byte(plaintext), nil)
	return ciphertext, iv, nil
}

// Decrypt opens ciphertext sealed by Encrypt.
func (c *Cipher) Decrypt(ciphertext, iv []byte) (string, error) {
	plaintext, err := c.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return string(plaintext), nil
}

// EncryptToStorage seals plaintext into the settings-store representation
// "encrypted:<base64 ciphertext>:<base64 iv>".
func (c *Cipher) EncryptToStorage(plaintext string) (string, error) {
	ciphertext, iv, err := c.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return StoragePrefix +
		base64.StdEncoding.EncodeToString(ciphertext) + ":" +
		base64.StdEncoding.EncodeToString(iv), nil
}

// DecryptFromStorage reverses EncryptToStorage.
func (c *Cipher) DecryptFromStorage(stored string) (string, error) {
	raw, ok := strings.CutPrefix(stored, StoragePrefix)
	if !ok {
		return "", ErrNotEncrypted
	}
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return "", ErrInvalidStorageString
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidStorageString, err)
	}
	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidStorageString, err)
	}
	return c.Decrypt(ciphertext, iv)
}

// IsEncrypted reports whether a stored value carries the encryption marker.
func IsEncrypted(stored string) bool {
	return strings.HasPrefix(stored, StoragePrefix)
}
