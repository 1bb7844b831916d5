package lorachat

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of a pre-shared key in bytes.
	KeySize = chacha20poly1305.KeySize

	pbkdf2Iterations = 100000
	pbkdf2Salt       = "lorachat-psk-v1"
)

// Cipher seals and opens envelope content.
type Cipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

var _ Cipher = &PSK{}

// PSK is an authenticated cipher keyed with a pre-shared symmetric key (XChaCha20-Poly1305).
// Sealed output is nonce || ciphertext || tag.
type PSK struct {
	aead cipher.AEAD
}

// NewPSK creates a cipher from raw key bytes.
func NewPSK(key []byte) (*PSK, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("pre-shared key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &PSK{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (p *PSK) Seal(plaintext []byte) ([]byte, error) {
	nonceSize := p.aead.NonceSize()
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+p.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return p.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a value produced by Seal.
func (p *PSK) Open(sealed []byte) ([]byte, error) {
	nonceSize := p.aead.NonceSize()
	if len(sealed) < nonceSize+p.aead.Overhead() {
		return nil, errors.New("ciphertext too short")
	}
	return p.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
}

// GenerateKey returns a fresh random pre-shared key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// DecodeKeyBase64 converts a base64-encoded string into raw key bytes.
func DecodeKeyBase64(key string) ([]byte, error) {
	bytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(key))
	if err != nil {
		return nil, err
	}
	if len(bytes) != KeySize {
		return nil, fmt.Errorf("pre-shared key must be %d bytes, got %d", KeySize, len(bytes))
	}
	return bytes, nil
}

// ReadKeyFile loads a base64-encoded key from a file.
func ReadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return DecodeKeyBase64(string(data))
}

// DeriveKey stretches a shared passphrase into a key. Every node using the same passphrase
// derives the same key.
func DeriveKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(pbkdf2Salt), pbkdf2Iterations, KeySize, sha256.New)
}
