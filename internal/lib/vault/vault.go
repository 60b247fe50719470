// Package vault encrypts provider access tokens at rest with AES-256-GCM.
//
// A ciphertext blob is base64(nonce || sealed), where nonce is 12 random bytes
// generated per call and sealed carries the GCM tag.
//
// The key is normally a configured base64 32-byte value. When no key is configured
// the vault derives one with PBKDF2-SHA256 from another secret. That mode is weaker:
// the salt is fixed and the source secret is usually shared with other concerns,
// so production deployments should always set the key.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize          = 32
	nonceSize        = 12
	derivationRounds = 100_000
	derivationSalt   = "inboxgate.token-vault.v1"
)

var (
	ErrDecryptFailed = errors.New("token decrypt failed")
	ErrNoKey         = errors.New("no token encryption key or fallback secret configured")
)

type Vault struct {
	aead     cipher.AEAD
	degraded bool
}

// New builds a vault from a base64-encoded 32-byte key.
func New(encodedKey string) (*Vault, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}
	return newVault(key, false)
}

// Derive builds a degraded-mode vault whose key is derived from secret.
func Derive(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrNoKey
	}
	key := pbkdf2.Key([]byte(secret), []byte(derivationSalt), derivationRounds, keySize, sha256.New)
	return newVault(key, true)
}

// FromConfig prefers the direct key and falls back to derivation.
func FromConfig(encodedKey, fallbackSecret string) (*Vault, error) {
	if encodedKey != "" {
		return New(encodedKey)
	}
	return Derive(fallbackSecret)
}

func newVault(key []byte, degraded bool) (*Vault, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &Vault{aead: aead, degraded: degraded}, nil
}

// Degraded reports whether the key was derived instead of configured.
func (v *Vault) Degraded() bool {
	return v.degraded
}

func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	blob := make([]byte, 0, len(nonce)+len(sealed))
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt returns an error wrapping ErrDecryptFailed for any malformed or tampered blob.
func (v *Vault) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	if len(raw) < nonceSize+v.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptFailed)
	}
	plain, err := v.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return string(plain), nil
}
