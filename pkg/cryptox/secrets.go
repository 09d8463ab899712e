package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/hkdf"
)

var (
	masterKeyOnce sync.Once
	masterKey     []byte
	masterKeyErr  error
	masterKeyPath string = "" // Can be set via SetMasterKeyPath before first use
)

// HKDF info strings for purpose-specific keys. Encryption and signing must
// never share key material.
const (
	purposeSecretEncryption = "mfagate/secret-encryption/v1"
	purposeTokenSigning     = "mfagate/session-token-signing/v1"
)

// SetMasterKeyPath configures where to load the master key from.
// This must be called before any encryption/signing operations.
// If not set, the key will be loaded from the MFA_MASTER_KEY environment variable.
func SetMasterKeyPath(path string) {
	masterKeyPath = path
}

// loadMasterKey loads raw master key material from either:
// 1. File specified by masterKeyPath (if set)
// 2. MFA_MASTER_KEY environment variable
// 3. Generates an ephemeral key for development (NOT for production —
//    encrypted secrets won't survive a restart)
func loadMasterKey() ([]byte, error) {
	if masterKeyPath != "" {
		data, err := os.ReadFile(masterKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read master key file: %w", err)
		}
		return data, nil
	}

	if envKey := os.Getenv("MFA_MASTER_KEY"); envKey != "" {
		return []byte(envKey), nil
	}

	ephemeral := make([]byte, 32)
	if _, err := rand.Read(ephemeral); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral master key: %w", err)
	}
	return ephemeral, nil
}

func getMasterKey() ([]byte, error) {
	masterKeyOnce.Do(func() {
		masterKey, masterKeyErr = loadMasterKey()
	})
	return masterKey, masterKeyErr
}

// deriveKey expands the master key into a 32-byte purpose-specific key using
// HKDF-SHA256. Different info strings yield independent keys.
func deriveKey(purpose string) ([]byte, error) {
	master, err := getMasterKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key: %w", err)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("failed to derive %q key: %w", purpose, err)
	}
	return key, nil
}

// TokenSigningKey returns the 32-byte HMAC key used to sign session proof tokens.
func TokenSigningKey() ([]byte, error) {
	return deriveKey(purposeTokenSigning)
}

// EncryptSecret encrypts a TOTP secret using AES-256-GCM.
// The output format is: [12-byte nonce][encrypted data][16-byte auth tag].
// A random nonce is used per encryption.
func EncryptSecret(plaintext []byte) ([]byte, error) {
	gcm, err := secretCipher()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// gcm.Seal appends the ciphertext and auth tag to nonce
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptSecret decrypts data encrypted with EncryptSecret.
func DecryptSecret(encrypted []byte) ([]byte, error) {
	gcm, err := secretCipher()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(encrypted) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := encrypted[:nonceSize], encrypted[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}

func secretCipher() (cipher.AEAD, error) {
	key, err := deriveKey(purposeSecretEncryption)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// ResetMasterKeyForTesting resets the master key singleton for testing purposes.
// This should ONLY be used in tests.
func ResetMasterKeyForTesting() {
	masterKeyOnce = sync.Once{}
	masterKey = nil
	masterKeyErr = nil
}
