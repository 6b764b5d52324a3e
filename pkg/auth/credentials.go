package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultProfile is used when no profile name is given
const DefaultProfile = "default"

// Credential is a provider API key stored under a profile name
type Credential struct {
	Profile      string    `json:"profile"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving API keys
type CredentialStore interface {
	// Store saves the credential under its profile
	Store(cred *Credential) error

	// Retrieve gets the credential for a profile
	Retrieve(profile string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes the credential for a profile
	Delete(profile string) error

	// Exists checks if a credential exists for a profile
	Exists(profile string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager backed by the system keychain when
// available, an encrypted file and the environment.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "keys"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the credential in the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred == nil {
		return ErrInvalidCredentials
	}
	cred.Profile = normalizeProfile(cred.Profile)
	cred.APIKey = strings.TrimSpace(cred.APIKey)
	if cred.APIKey == "" {
		return errors.New("API key is required")
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the credential from the first store that has it
func (m *Manager) Retrieve(profile string) (*Credential, error) {
	profile = normalizeProfile(profile)
	for _, store := range m.stores {
		if cred, err := store.Retrieve(profile); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w for profile: %s", ErrCredentialsNotFound, profile)
}

// APIKey resolves the key for profile. The environment wins over stored keys.
func (m *Manager) APIKey(profile string) (string, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if cred, err := env.Retrieve(profile); err == nil {
				return cred.APIKey, nil
			}
		}
	}

	cred, err := m.Retrieve(profile)
	if err != nil {
		return "", err
	}
	return cred.APIKey, nil
}

// List returns the credentials of all stores, newest per profile
func (m *Manager) List() ([]*Credential, error) {
	byProfile := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byProfile[cred.Profile]; !ok || cred.LastModified.After(existing.LastModified) {
				byProfile[cred.Profile] = cred
			}
		}
	}

	result := make([]*Credential, 0, len(byProfile))
	for _, cred := range byProfile {
		result = append(result, cred)
	}
	return result, nil
}

// Delete removes the profile's credential from all stores
func (m *Manager) Delete(profile string) error {
	profile = normalizeProfile(profile)
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w for profile: %s", ErrCredentialsNotFound, profile)
}

func normalizeProfile(profile string) string {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return DefaultProfile
	}
	return profile
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "xcscraper")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "xcscraper")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "xcscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "xcscraper")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// MaskKey hides all but the first and last four characters of a key
func MaskKey(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
