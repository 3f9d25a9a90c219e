package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/strata-go/strata/internal/types"
)

// Key derivation parameters. The salt is static so every process that
// shares a secret derives the same AES key; per-message uniqueness comes
// from the random GCM nonce.
const (
	kdfSalt       = "strata.codec.v1"
	kdfIterations = 10_000
	kdfKeyLen     = 32 // AES-256
)

// encryptor seals and opens payload frames with AES-256-GCM. Sealed
// output is nonce + ciphertext. Safe for concurrent use.
type encryptor struct {
	aead cipher.AEAD
}

func newEncryptor(secret string) (*encryptor, error) {
	if secret == "" {
		return nil, errors.New("encryption key cannot be empty")
	}

	key := pbkdf2.Key([]byte(secret), []byte(kdfSalt), kdfIterations, kdfKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &encryptor{aead: aead}, nil
}

// seal encrypts a frame with a fresh random nonce.
func (e *encryptor) seal(frame []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, frame, nil), nil
}

// open authenticates and decrypts a sealed frame. Tampering, truncation,
// and key mismatch all yield ErrIntegrity; no partial plaintext is ever
// returned.
func (e *encryptor) open(sealed []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, types.ErrIntegrity
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	frame, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, types.ErrIntegrity
	}
	return frame, nil
}
