package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// SecurityMethod defines the credential storage method
type SecurityMethod string

const (
	SecurityPlainText  SecurityMethod = "plaintext"
	SecurityPassphrase SecurityMethod = "encrypted"
)

const (
	credentialsPlainFile     = "credentials.json"
	credentialsEncryptedFile = "credentials.enc"
)

// Credentials is the stored login for automatic sign-in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CredentialStore persists the account login at rest, either plaintext or
// AES-GCM encrypted under a passphrase-derived key.
type CredentialStore struct {
	method     SecurityMethod
	encManager *EncryptionManager
}

// NewCredentialStore creates a credential store for the given method.
func NewCredentialStore(method SecurityMethod) *CredentialStore {
	store := &CredentialStore{method: method}
	if method == SecurityPassphrase {
		store.encManager = NewEncryptionManager(EncryptionPassphrase)
	}
	return store
}

// SetPassphrase sets the passphrase protecting the encrypted store.
func (c *CredentialStore) SetPassphrase(passphrase string) {
	if c.encManager != nil {
		c.encManager.SetPassphrase(passphrase)
	}
}

// Exists reports whether stored credentials are present for this method.
func (c *CredentialStore) Exists(dataDir string) bool {
	return FileExists(filepath.Join(dataDir, c.fileName()))
}

// Load reads the stored login. Returns os.ErrNotExist wrapped when nothing
// has been saved yet; a wrong passphrase surfaces as a decryption error.
func (c *CredentialStore) Load(dataDir string) (*Credentials, error) {
	path := filepath.Join(dataDir, c.fileName())
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading credentials")
	}

	if c.method == SecurityPassphrase {
		data, err = c.encManager.Decrypt(data)
		if err != nil {
			return nil, err
		}
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, errors.Wrap(err, "parsing credentials")
	}
	return &creds, nil
}

// Save writes the login to disk per the configured method.
func (c *CredentialStore) Save(dataDir string, creds *Credentials) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return errors.Wrap(err, "creating data directory")
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "encoding credentials")
	}

	if c.method == SecurityPassphrase {
		data, err = c.encManager.Encrypt(data)
		if err != nil {
			return err
		}
	}

	path := filepath.Join(dataDir, c.fileName())
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "writing credentials")
	}
	return nil
}

// Delete removes any stored login, both plaintext and encrypted forms.
func (c *CredentialStore) Delete(dataDir string) error {
	for _, name := range []string{credentialsPlainFile, credentialsEncryptedFile} {
		path := filepath.Join(dataDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "removing credentials")
		}
	}
	return nil
}

func (c *CredentialStore) fileName() string {
	if c.method == SecurityPassphrase {
		return credentialsEncryptedFile
	}
	return credentialsPlainFile
}
