// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package secrets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	svc := New("test-app-secret")
	plaintext := "sup3r-secret-password"

	ciphertext, err := svc.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	require.Equal(t, plaintext, svc.Decrypt(ciphertext))
}

func TestDecryptLenientOnNonCiphertext(t *testing.T) {
	svc := New("test-app-secret")
	legacy := "plain-old-password-written-before-encryption"

	require.Equal(t, legacy, svc.Decrypt(legacy))
}

func TestEncryptEmptyString(t *testing.T) {
	svc := New("test-app-secret")
	ciphertext, err := svc.Encrypt("")
	require.NoError(t, err)
	require.Empty(t, ciphertext)
}

func TestDifferentKeysDoNotCrossDecrypt(t *testing.T) {
	a := New("secret-a")
	b := New("secret-b")

	ciphertext, err := a.Encrypt("payload")
	require.NoError(t, err)

	// b cannot open a's ciphertext, so it must fall back to passthrough.
	require.Equal(t, ciphertext, b.Decrypt(ciphertext))
}
