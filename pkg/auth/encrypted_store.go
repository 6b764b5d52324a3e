package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/crypto/argon2"
)

// PassphraseEnv overrides the generated passphrase of the key directory
const PassphraseEnv = "XCSCRAPER_PASSPHRASE"

const (
	keyFileExt     = ".key"
	keyFileVersion = "xcs1"
	passphraseFile = ".passphrase"
	saltSize       = 16
)

var profilePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// EncryptedFileStore keeps one sealed file per profile in a directory. Each
// file holds a single API key encrypted with AES-GCM under an Argon2id key
// derived from the directory passphrase. The profile name is bound as
// additional data, so a file renamed to another profile fails to open.
type EncryptedFileStore struct {
	dir        string
	passphrase []byte
}

// NewEncryptedFileStore opens the key directory, creating it if needed.
// Unless PassphraseEnv is set, a random passphrase is generated once and kept
// in the directory.
func NewEncryptedFileStore(dir string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	passphrase, err := loadPassphrase(dir)
	if err != nil {
		return nil, err
	}
	return &EncryptedFileStore{dir: dir, passphrase: passphrase}, nil
}

func loadPassphrase(dir string) ([]byte, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return []byte(pass), nil
	}

	path := filepath.Join(dir, passphraseFile)
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return content, nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := []byte(base64.RawURLEncoding.EncodeToString(raw))
	if err := os.WriteFile(path, pass, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}

func (e *EncryptedFileStore) path(profile string) (string, error) {
	if !profilePattern.MatchString(profile) {
		return "", fmt.Errorf("%w: profile %q", ErrInvalidCredentials, profile)
	}
	return filepath.Join(e.dir, profile+keyFileExt), nil
}

func (e *EncryptedFileStore) Store(cred *Credential) error {
	if cred == nil || cred.APIKey == "" {
		return ErrInvalidCredentials
	}
	path, err := e.path(cred.Profile)
	if err != nil {
		return err
	}

	sealed, err := e.seal(cred.Profile, cred.APIKey)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sealed+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace key file: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) Retrieve(profile string) (*Credential, error) {
	path, err := e.path(profile)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := e.open(profile, strings.TrimSpace(string(content)))
	if err != nil {
		return nil, err
	}

	cred := &Credential{Profile: profile, APIKey: key}
	if info, err := os.Stat(path); err == nil {
		cred.LastModified = info.ModTime()
	}
	return cred, nil
}

// List opens every key file in the directory, sorted by profile. Files that
// cannot be opened with the current passphrase are left out.
func (e *EncryptedFileStore) List() ([]*Credential, error) {
	matches, err := filepath.Glob(filepath.Join(e.dir, "*"+keyFileExt))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	creds := make([]*Credential, 0, len(matches))
	for _, m := range matches {
		profile := strings.TrimSuffix(filepath.Base(m), keyFileExt)
		if cred, err := e.Retrieve(profile); err == nil {
			creds = append(creds, cred)
		}
	}
	return creds, nil
}

func (e *EncryptedFileStore) Delete(profile string) error {
	path, err := e.path(profile)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) Exists(profile string) bool {
	path, err := e.path(profile)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// seal renders "xcs1$<salt>$<nonce|ciphertext>" in unpadded base64
func (e *EncryptedFileStore) seal(profile, apiKey string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := e.aead(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := aead.Seal(nonce, nonce, []byte(apiKey), []byte(profile))

	enc := base64.RawStdEncoding
	return strings.Join([]string{keyFileVersion, enc.EncodeToString(salt), enc.EncodeToString(box)}, "$"), nil
}

func (e *EncryptedFileStore) open(profile, sealed string) (string, error) {
	parts := strings.Split(sealed, "$")
	if len(parts) != 3 || parts[0] != keyFileVersion {
		return "", fmt.Errorf("unrecognized key file format")
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("failed to decode salt: %w", err)
	}
	box, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("failed to decode key: %w", err)
	}

	aead, err := e.aead(salt)
	if err != nil {
		return "", err
	}
	if len(box) < aead.NonceSize() {
		return "", errors.New("key file too short")
	}
	plain, err := aead.Open(nil, box[:aead.NonceSize()], box[aead.NonceSize():], []byte(profile))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt key: %w", err)
	}
	return string(plain), nil
}

func (e *EncryptedFileStore) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(e.passphrase, salt, 1, 19*1024, 1, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
