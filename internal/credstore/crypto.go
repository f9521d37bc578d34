package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	keySize = 32 // AES-256

	// encPrefix marks encrypted credential files. Files without it are the
	// plaintext fallback written when no OS keyring is available.
	encPrefix = "enc:v1:"
)

var errCiphertextInvalid = errors.New("credstore: ciphertext invalid")

// newMasterKey generates a random AES-256 key.
func newMasterKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("credstore: generate key: %w", err)
	}
	return key, nil
}

// encryptValue seals plaintext with AES-256-GCM and returns a prefixed
// base64 string with the nonce prepended to the ciphertext.
func encryptValue(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// decryptValue reverses encryptValue. Any malformed input yields
// errCiphertextInvalid rather than a panic or partial output.
func decryptValue(key []byte, value string) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		return "", errCiphertextInvalid
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", errCiphertextInvalid
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", errCiphertextInvalid
	}
	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", errCiphertextInvalid
	}
	return string(plain), nil
}
