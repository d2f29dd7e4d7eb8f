package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Vault encrypts per-user provider credentials at rest with
// AES-256-GCM. Ciphertexts are nonce-prefixed and base64 encoded so
// they can live in a TEXT column.
type Vault struct {
	key []byte
}

// New derives the vault key from the ENCRYPTION_KEY value. A 64-char
// hex string is decoded as the raw key; anything else is hashed with
// SHA-256 so operators can use a passphrase. An empty key is a
// configuration error and fails loudly.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption key is empty")
	}
	if len(secret) == 64 {
		if raw, err := hex.DecodeString(secret); err == nil {
			return &Vault{key: raw}, nil
		}
	}
	sum := sha256.Sum256([]byte(secret))
	return &Vault{key: sum[:]}, nil
}

// Encrypt seals the plaintext with a fresh random nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to init gcm: %w", err)
	}
	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aesgcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any failure returns
// an empty string: callers treat an unreadable credential the same as
// a missing one.
func (v *Vault) Decrypt(encoded string) string {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ""
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return ""
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return ""
	}
	if len(sealed) < aesgcm.NonceSize() {
		return ""
	}
	nonce, ciphertext := sealed[:aesgcm.NonceSize()], sealed[aesgcm.NonceSize():]
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ""
	}
	return string(plaintext)
}
