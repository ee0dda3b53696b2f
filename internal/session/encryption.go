package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Codec encodes cookie values. With a key, values are sealed with AES-256-GCM
// under a fresh random nonce and base64url encoded as nonce || ciphertext || tag.
// Without a key, values are only URL escaped.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec creates a Codec. A nil or empty key disables encryption.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) == 0 {
		return &Codec{}, nil
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be exactly %d bytes (256 bits), got %d bytes", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypted reports whether values are encrypted.
func (c *Codec) Encrypted() bool {
	return c.aead != nil
}

// Encode seals plaintext for storage in a cookie.
func (c *Codec) Encode(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if c.aead == nil {
		return url.QueryEscape(plaintext), nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a value produced by Encode.
func (c *Codec) Decode(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	if c.aead == nil {
		plaintext, err := url.QueryUnescape(encoded)
		if err != nil {
			return "", fmt.Errorf("failed to unescape value: %w", err)
		}
		return plaintext, nil
	}

	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// GenerateKey returns a new random AES-256 key. Generate it once and keep it:
// cookies sealed under one key cannot be read with another.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return key, nil
}

// KeyToBase64 encodes a key for configuration files and environment variables.
func KeyToBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
