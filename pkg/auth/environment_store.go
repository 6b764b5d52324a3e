package auth

import (
	"os"
	"time"
)

// APIKeyEnv holds an API key that applies to every profile
const APIKeyEnv = "XCSCRAPER_API_KEY"

// EnvironmentStore implements CredentialStore over XCSCRAPER_API_KEY.
// It is read-only.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Credential) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(profile string) (*Credential, error) {
	key := os.Getenv(APIKeyEnv)
	if key == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Credential{
		Profile:      normalizeProfile(profile),
		APIKey:       key,
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve(DefaultProfile)
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(string) bool {
	return os.Getenv(APIKeyEnv) != ""
}
