package auth

import (
	"sort"
	"sync"
)

// MockStore is an in-memory CredentialStore. Setting one of the error fields
// makes the matching operation fail.
type MockStore struct {
	mu   sync.Mutex
	keys map[string]Credential

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

func NewMockStore() *MockStore {
	return &MockStore{keys: make(map[string]Credential)}
}

// NewMockManager creates a Manager with a single mock store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

func (m *MockStore) Store(cred *Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if cred == nil || cred.Profile == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	m.keys[cred.Profile] = *cred
	m.mu.Unlock()
	return nil
}

func (m *MockStore) Retrieve(profile string) (*Credential, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	m.mu.Lock()
	cred, ok := m.keys[profile]
	m.mu.Unlock()
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &cred, nil
}

// List returns the stored credentials sorted by profile
func (m *MockStore) List() ([]*Credential, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	creds := make([]*Credential, 0, len(m.keys))
	for _, cred := range m.keys {
		c := cred
		creds = append(creds, &c)
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].Profile < creds[j].Profile })
	return creds, nil
}

func (m *MockStore) Delete(profile string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[profile]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.keys, profile)
	return nil
}

func (m *MockStore) Exists(profile string) bool {
	_, err := m.Retrieve(profile)
	return err == nil
}

// Count returns the number of stored keys
func (m *MockStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
