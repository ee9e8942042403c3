package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var ErrCiphertextTooShort = errors.New("cryptox: ciphertext too short")

// KeyCipher seals private signing keys at rest with AES-256-GCM. Sealed
// output is [nonce][ciphertext][tag].
type KeyCipher struct {
	aead cipher.AEAD
}

// NewKeyCipher derives the AES key from arbitrary master key material.
func NewKeyCipher(material []byte) (*KeyCipher, error) {
	if len(material) == 0 {
		return nil, errors.New("cryptox: empty master key")
	}

	key := sha256.Sum256(material)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}
	return &KeyCipher{aead: aead}, nil
}

// LoadKeyCipher reads the master key file, creating it with fresh random
// material when it does not exist yet.
func LoadKeyCipher(file string) (*KeyCipher, error) {
	file = filepath.Clean(file)

	material, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		material = make([]byte, 32)
		if _, err := rand.Read(material); err != nil {
			return nil, fmt.Errorf("cryptox: generate master key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
			return nil, err
		}
		if err := os.WriteFile(file, material, 0o600); err != nil {
			return nil, fmt.Errorf("cryptox: write master key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("cryptox: read master key: %w", err)
	}

	return NewKeyCipher(material)
}

// Seal encrypts plaintext under a random nonce.
func (c *KeyCipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal. A wrong master key or tampered data fails here.
func (c *KeyCipher) Open(sealed []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextTooShort
	}

	plaintext, err := c.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decrypt: %w", err)
	}
	return plaintext, nil
}
