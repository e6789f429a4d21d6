// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package secrets implements symmetric envelope encryption for device
// credentials at rest (§4.7). The key is derived from the application
// secret; decryption is lenient for backwards compatibility with rows
// written before encryption was introduced.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/grimm-is/netmond/internal/errors"
)

// KeySize is the AES-256 key size derived from the application secret.
const KeySize = 32

// Service encrypts and decrypts device credentials with a key derived from
// an application secret via SHA-256.
type Service struct {
	key []byte
}

// New derives the encryption key from appSecret. An empty appSecret is
// accepted (yields the fixed key derived from the empty string) so the service is
// always constructible; callers deploying to production should set a real
// secret.
func New(appSecret string) *Service {
	sum := sha256.Sum256([]byte(appSecret))
	return &Service{key: sum[:]}
}

// Encrypt seals plaintext with AES-256-GCM, prepending a random nonce to
// the ciphertext, and returns it base64-encoded.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "secrets: build cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "secrets: build gcm")
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "secrets: generate nonce")
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. If ciphertextB64 is empty,
// or is not valid base64, or does not decrypt under the current key, it is
// returned unchanged — preserving backwards compatibility with plaintext
// rows written before encryption was introduced.
func (s *Service) Decrypt(ciphertextB64 string) string {
	if ciphertextB64 == "" {
		return ciphertextB64
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return ciphertextB64
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return ciphertextB64
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return ciphertextB64
	}
	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return ciphertextB64
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ciphertextB64
	}
	return string(plaintext)
}
