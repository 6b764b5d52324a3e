package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "xcscraper"
	keyringPrefix  = "apikey:"
	// keyringIndex lists the stored profiles, since the keychain API cannot
	// enumerate a service's entries
	keyringIndex = "profiles"
)

// KeyringStore keeps each profile's API key in the system keychain as
// "<unix seconds>:<key>".
type KeyringStore struct{}

// NewKeyringStore returns a store if the system keychain accepts writes
func NewKeyringStore() (*KeyringStore, error) {
	const check = "availability-check"
	if err := keyring.Set(keyringService, check, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, check)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Store(cred *Credential) error {
	if cred == nil || cred.Profile == "" || cred.APIKey == "" {
		return ErrInvalidCredentials
	}

	modified := cred.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	secret := fmt.Sprintf("%d:%s", modified.Unix(), cred.APIKey)
	if err := keyring.Set(keyringService, keyringPrefix+cred.Profile, secret); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return k.updateIndex(cred.Profile, true)
}

func (k *KeyringStore) Retrieve(profile string) (*Credential, error) {
	if profile == "" {
		return nil, ErrInvalidCredentials
	}

	secret, err := keyring.Get(keyringService, keyringPrefix+profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	cred := &Credential{Profile: profile, APIKey: secret}
	if stamp, key, ok := strings.Cut(secret, ":"); ok {
		var unix int64
		if _, err := fmt.Sscan(stamp, &unix); err == nil {
			cred.APIKey = key
			cred.LastModified = time.Unix(unix, 0)
		}
	}
	return cred, nil
}

// List returns the indexed profiles that still have a key
func (k *KeyringStore) List() ([]*Credential, error) {
	profiles, err := k.profiles()
	if err != nil {
		return nil, err
	}

	creds := make([]*Credential, 0, len(profiles))
	for _, p := range profiles {
		if cred, err := k.Retrieve(p); err == nil {
			creds = append(creds, cred)
		}
	}
	return creds, nil
}

func (k *KeyringStore) Delete(profile string) error {
	if profile == "" {
		return ErrInvalidCredentials
	}

	err := keyring.Delete(keyringService, keyringPrefix+profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.updateIndex(profile, false)
}

func (k *KeyringStore) Exists(profile string) bool {
	_, err := k.Retrieve(profile)
	return err == nil
}

func (k *KeyringStore) profiles() ([]string, error) {
	raw, err := keyring.Get(keyringService, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	return strings.Fields(raw), nil
}

func (k *KeyringStore) updateIndex(profile string, present bool) error {
	current, err := k.profiles()
	if err != nil {
		return err
	}

	set := make(map[string]bool, len(current)+1)
	for _, p := range current {
		set[p] = true
	}
	if set[profile] == present {
		return nil
	}
	if present {
		set[profile] = true
	} else {
		delete(set, profile)
	}

	if len(set) == 0 {
		if err := keyring.Delete(keyringService, keyringIndex); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keyring index: %w", err)
		}
		return nil
	}

	names := make([]string, 0, len(set))
	for p := range set {
		names = append(names, p)
	}
	sort.Strings(names)
	if err := keyring.Set(keyringService, keyringIndex, strings.Join(names, " ")); err != nil {
		return fmt.Errorf("failed to update keyring index: %w", err)
	}
	return nil
}
