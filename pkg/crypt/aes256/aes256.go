// Package aes256 seals blob contents with AES-256-GCM. Each blob gets its own
// data key, and data keys are wrapped with the user supplied secret.
package aes256

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	KeySize   = 32
	NonceSize = 12
)

var ErrShortWrappedKey = errors.New("wrapped key is too short")

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func Encrypt(data []byte, key []byte, nonce []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aesgcm.Seal(nil, nonce, data, nil), nil
}

func Decrypt(ciphertext []byte, key []byte, nonce []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

func random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateKey returns a random data key.
func GenerateKey() ([]byte, error) { return random(KeySize) }

// GenerateNonce returns a random GCM nonce.
func GenerateNonce() ([]byte, error) { return random(NonceSize) }

// ParseSecret decodes a base64 secret as given on the command line. An empty
// string yields a nil secret.
func ParseSecret(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	secret, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding secret: %w", err)
	}
	if len(secret) != KeySize {
		return nil, fmt.Errorf("secret must be %d bytes, got %d", KeySize, len(secret))
	}
	return secret, nil
}

// WrapKey encrypts a data key under secret. The nonce is prepended to the
// result.
func WrapKey(key, secret []byte) ([]byte, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}
	sealed, err := Encrypt(key, secret, nonce)
	if err != nil {
		return nil, err
	}
	return append(nonce, sealed...), nil
}

// UnwrapKey reverses WrapKey.
func UnwrapKey(wrapped, secret []byte) ([]byte, error) {
	if len(wrapped) <= NonceSize {
		return nil, ErrShortWrappedKey
	}
	return Decrypt(wrapped[NonceSize:], secret, wrapped[:NonceSize])
}
