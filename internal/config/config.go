// Package config manages the local, non-secret settings file at
// ~/.epideploy/config.json. Secrets never live here; they belong to the
// keychain-backed credentials store.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultEndpoint is the production deployment API base URL.
const DefaultEndpoint = "https://paasportal.episerver.net/api/v1.0/"

const (
	keyAPIEndpoint      = "apiEndpoint"
	keyDefaultProjectID = "defaultProjectId"
)

// Settings is the persisted shape of the config file.
type Settings struct {
	APIEndpoint      string `json:"apiEndpoint"`
	DefaultProjectID string `json:"defaultProjectId,omitempty"`
}

// Manager loads and saves settings through viper. Environment variables
// EPIDEPLOY_API_ENDPOINT and EPIDEPLOY_PROJECT_ID override the file but
// not explicit flags (the commands resolve flags themselves).
type Manager struct {
	v    *viper.Viper
	path string
}

// NewManager uses the default config location under the user home.
func NewManager() (*Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("config: cannot resolve home directory: %w", err)
	}
	return NewManagerAt(filepath.Join(home, ".epideploy", "config.json")), nil
}

// NewManagerAt builds a manager for an explicit path. Used by tests.
func NewManagerAt(path string) *Manager {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault(keyAPIEndpoint, DefaultEndpoint)
	v.SetDefault(keyDefaultProjectID, "")
	_ = v.BindEnv(keyAPIEndpoint, "EPIDEPLOY_API_ENDPOINT")
	_ = v.BindEnv(keyDefaultProjectID, "EPIDEPLOY_PROJECT_ID")
	return &Manager{v: v, path: path}
}

// Load reads the config file if it exists. A missing file is not an error:
// defaults and environment variables still apply.
func (m *Manager) Load() error {
	if err := m.v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("config: cannot read %s: %w", m.path, err)
	}
	return nil
}

// Settings returns the effective settings after defaults, file, and
// environment are merged.
func (m *Manager) Settings() Settings {
	return Settings{
		APIEndpoint:      m.v.GetString(keyAPIEndpoint),
		DefaultProjectID: m.v.GetString(keyDefaultProjectID),
	}
}

// APIEndpoint returns the effective API base URL.
func (m *Manager) APIEndpoint() string {
	return m.v.GetString(keyAPIEndpoint)
}

// DefaultProjectID returns the configured default project, possibly empty.
func (m *Manager) DefaultProjectID() string {
	return m.v.GetString(keyDefaultProjectID)
}

// SetAPIEndpoint updates the endpoint in memory. Call Save to persist.
func (m *Manager) SetAPIEndpoint(endpoint string) {
	m.v.Set(keyAPIEndpoint, endpoint)
}

// SetDefaultProjectID updates the default project in memory. Call Save to
// persist.
func (m *Manager) SetDefaultProjectID(projectID string) {
	m.v.Set(keyDefaultProjectID, projectID)
}

// Save writes the current settings back to the config file, creating the
// parent directory on first use.
func (m *Manager) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return fmt.Errorf("config: cannot create config directory: %w", err)
	}
	if err := m.v.WriteConfigAs(m.path); err != nil {
		return fmt.Errorf("config: cannot write %s: %w", m.path, err)
	}
	return nil
}
