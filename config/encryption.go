package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

// EncryptionMethod defines how data is encrypted
type EncryptionMethod string

const (
	EncryptionNone       EncryptionMethod = "none"
	EncryptionPassphrase EncryptionMethod = "passphrase"
)

const saltSize = 16

// EncryptionManager provides general-purpose encryption for local Wisdar data
// (stored credentials, sensitive cache entries). Keys are derived per-blob
// from a passphrase with scrypt; the salt travels with the ciphertext.
type EncryptionManager struct {
	method     EncryptionMethod
	passphrase string
}

// NewEncryptionManager creates a new encryption manager
func NewEncryptionManager(method EncryptionMethod) *EncryptionManager {
	return &EncryptionManager{method: method}
}

// SetPassphrase sets the passphrase the key is derived from
func (e *EncryptionManager) SetPassphrase(passphrase string) {
	e.passphrase = passphrase
}

// GetMethod returns the current encryption method
func (e *EncryptionManager) GetMethod() EncryptionMethod {
	return e.method
}

// Encrypt encrypts data using the configured method.
// Passphrase format: [salt (16 bytes)][nonce (12 bytes)][ciphertext + tag]
func (e *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	switch e.method {
	case EncryptionNone:
		return plaintext, nil

	case EncryptionPassphrase:
		if e.passphrase == "" {
			return nil, errors.New("passphrase required for encryption")
		}
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, errors.Wrap(err, "generating salt")
		}
		key, err := deriveKey(e.passphrase, salt)
		if err != nil {
			return nil, err
		}
		ciphertext, err := encryptAESGCM(plaintext, key)
		if err != nil {
			return nil, err
		}
		return append(salt, ciphertext...), nil

	default:
		return nil, errors.Errorf("unknown encryption method: %s", e.method)
	}
}

// Decrypt decrypts data using the configured method
func (e *EncryptionManager) Decrypt(data []byte) ([]byte, error) {
	switch e.method {
	case EncryptionNone:
		return data, nil

	case EncryptionPassphrase:
		if e.passphrase == "" {
			return nil, errors.New("passphrase required for decryption")
		}
		if len(data) < saltSize {
			return nil, errors.New("ciphertext too short")
		}
		key, err := deriveKey(e.passphrase, data[:saltSize])
		if err != nil {
			return nil, err
		}
		return decryptAESGCM(data[saltSize:], key)

	default:
		return nil, errors.Errorf("unknown encryption method: %s", e.method)
	}
}

// deriveKey derives a 32-byte AES-256 key from the passphrase with scrypt.
// Parameters follow the scrypt package's current interactive recommendation.
func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, 32768, 8, 1, 32)
	if err != nil {
		return nil, errors.Wrap(err, "deriving key")
	}
	return key, nil
}

// encryptAESGCM encrypts data using AES-256-GCM
// Format: [nonce (12 bytes)][ciphertext + tag]
func encryptAESGCM(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return ciphertext, nil
}

// decryptAESGCM decrypts data using AES-256-GCM
// Expects format: [nonce (12 bytes)][ciphertext + tag]
func decryptAESGCM(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:nonceSize]
	ciphertextData := ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertextData, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decryption failed")
	}

	return plaintext, nil
}
