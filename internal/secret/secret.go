// Package secret seals and opens tenant credential bundles.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// MaxPlaintext bounds the size of a credential bundle.
const MaxPlaintext = 16 << 10

const keyInfo = "aiconnect credential bundle v1"

var (
	// ErrKeyMissing is returned when no encryption key is configured.
	ErrKeyMissing = errors.New("encryption key is not configured")
	// ErrTooLarge is returned when a plaintext exceeds MaxPlaintext.
	ErrTooLarge = errors.New("plaintext exceeds size limit")
)

// Sealer encrypts and decrypts credential bundles with AES-256-GCM.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an AES-256 key from passphrase and returns a Sealer.
func NewSealer(passphrase string) (*Sealer, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrKeyMissing
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Encrypt seals plaintext and returns nonce || ciphertext in raw base64.
func (s *Sealer) Encrypt(plaintext string) (string, error) {
	if s == nil || s.aead == nil {
		return "", ErrKeyMissing
	}
	if len(plaintext) > MaxPlaintext {
		return "", ErrTooLarge
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	payload := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawStdEncoding.EncodeToString(payload), nil
}

// Open reverses Encrypt.
func (s *Sealer) Open(sealed string) (string, error) {
	if s == nil || s.aead == nil {
		return "", ErrKeyMissing
	}

	payload, err := base64.RawStdEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(payload) < nonceSize+s.aead.Overhead() {
		return "", errors.New("sealed value is too short")
	}
	plaintext, err := s.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt sealed value: %w", err)
	}
	return string(plaintext), nil
}

// Decrypt is Open with failures collapsed to the empty string.
func (s *Sealer) Decrypt(sealed string) string {
	plaintext, err := s.Open(sealed)
	if err != nil {
		return ""
	}
	return plaintext
}
