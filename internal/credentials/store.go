// Package credentials persists the API key pair in the operating system
// keychain via go-keyring. Nothing is ever written to disk in plain text.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "epideploy"
	keyringAccount = "default"
)

var (
	ErrNoCredentials = errors.New("credentials: no stored credentials, run 'epideploy auth login' first")
)

// Credentials is the secret material for one API client key pair. ProjectID
// is optional and acts as the default project for commands that omit
// --project-id.
type Credentials struct {
	ClientKey    string `json:"clientKey"`
	ClientSecret string `json:"clientSecret"` // base64 encoded
	ProjectID    string `json:"projectId,omitempty"`
}

// Empty reports whether the pair is unusable.
func (c Credentials) Empty() bool {
	return c.ClientKey == "" || c.ClientSecret == ""
}

// Keyring is the subset of the system keychain the store needs. The real
// implementation is go-keyring; tests substitute an in-memory fake.
type Keyring interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

type systemKeyring struct{}

func (systemKeyring) Set(service, user, password string) error { return keyring.Set(service, user, password) }
func (systemKeyring) Get(service, user string) (string, error) { return keyring.Get(service, user) }
func (systemKeyring) Delete(service, user string) error        { return keyring.Delete(service, user) }

// Store reads and writes credentials under a fixed service/account pair.
type Store struct {
	ring Keyring
}

func NewStore() *Store {
	return &Store{ring: systemKeyring{}}
}

func NewStoreWithKeyring(ring Keyring) *Store {
	return &Store{ring: ring}
}

// Save persists the credentials, replacing any previous entry.
func (s *Store) Save(creds Credentials) error {
	if creds.Empty() {
		return errors.New("credentials: refusing to store an empty key pair")
	}
	blob, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("credentials: marshal failed: %w", err)
	}
	if err := s.ring.Set(keyringService, keyringAccount, string(blob)); err != nil {
		return fmt.Errorf("credentials: keychain write failed: %w", err)
	}
	return nil
}

// Load returns the stored credentials or ErrNoCredentials.
func (s *Store) Load() (Credentials, error) {
	blob, err := s.ring.Get(keyringService, keyringAccount)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, fmt.Errorf("credentials: keychain read failed: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(blob), &creds); err != nil {
		return Credentials{}, fmt.Errorf("credentials: stored entry is corrupt: %w", err)
	}
	if creds.Empty() {
		return Credentials{}, ErrNoCredentials
	}
	return creds, nil
}

// Clear removes the stored credentials. Clearing an empty store is not an
// error.
func (s *Store) Clear() error {
	err := s.ring.Delete(keyringService, keyringAccount)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("credentials: keychain delete failed: %w", err)
	}
	return nil
}
