package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
)

// DoubleSHA256 returns sha256(sha256(data)), the secret-derivation
// primitive this facade uses in place of a password-stretching KDF.
// No key-stretching beyond this is implied by the facade: a thin,
// fast derivation is the explicit contract a caller can rely on.
func DoubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// AESEncrypt encrypts plaintext under secret (expected to be the
// 32-byte output of DoubleSHA256) using AES-256-GCM, returning a
// base64 string of nonce||ciphertext.
func AESEncrypt(secret []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// AESDecrypt reverses AESEncrypt. It returns an error if secret does
// not match the one used to encrypt, matching the wrong-password case
// the account layer maps to a decryption failure.
func AESDecrypt(secret []byte, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	block, err := aes.NewCipher(secret)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// SecureClear zeroes a byte slice in place, best-effort hygiene for
// secrets that are no longer needed.
func SecureClear(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare reports whether a and b are equal without
// leaking timing information about where they first differ.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
