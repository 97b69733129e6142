package creds

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	nonceSize     = 12 // GCM standard nonce size
	keySize       = 32 // AES-256
	kdfIterations = 100000
	kdfSalt       = "whatsauto-creds-v1"

	encryptionSecretEnv = "WHATSAUTO_ENCRYPTION_SECRET"
)

// encryptor seals credential blobs with AES-GCM. A nil gcm means
// encryption is disabled and blobs pass through unchanged.
type encryptor struct {
	gcm cipher.AEAD
}

func newEncryptor(enabled bool) (*encryptor, error) {
	if !enabled {
		return &encryptor{}, nil
	}

	key, err := deriveKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &encryptor{gcm: gcm}, nil
}

func (e *encryptor) Seal(plaintext []byte) ([]byte, error) {
	if e.gcm == nil || len(plaintext) == 0 {
		return plaintext, nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Nonce is prepended to the ciphertext for storage.
	return e.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *encryptor) Open(data []byte) ([]byte, error) {
	if e.gcm == nil || len(data) == 0 {
		return data, nil
	}

	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func deriveKey() ([]byte, error) {
	secret := os.Getenv(encryptionSecretEnv)
	if secret == "" {
		return nil, fmt.Errorf("%s environment variable is required when encryption is enabled", encryptionSecretEnv)
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("encryption secret must be at least 32 characters long")
	}

	return pbkdf2.Key([]byte(secret), []byte(kdfSalt), kdfIterations, keySize, sha256.New), nil
}
