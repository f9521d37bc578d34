// Package credstore persists the single API credential encrypted at rest.
//
// When the OS keyring is reachable, a random AES-256 master key lives in the
// keyring and the credential file holds AES-GCM ciphertext. When it is not,
// the file holds the raw secret (still 0600 under the user's data dir); that
// is a degraded-security mode, not an error.
package credstore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"
)

const (
	keyringService = "animatic"
	keyringUser    = "credential-key"

	// FileName is the credential file under the data dir.
	FileName = "credential.bin"
)

// keyringProvider abstracts go-keyring calls for testing.
type keyringProvider interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

type osKeyring struct{}

func (osKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}
func (osKeyring) Get(service, user string) (string, error) { return keyring.Get(service, user) }
func (osKeyring) Delete(service, user string) error        { return keyring.Delete(service, user) }

// Store reads and writes the credential file. It keeps no secret resident
// between calls.
type Store struct {
	path     string
	provider keyringProvider
	log      zerolog.Logger
}

// New creates a Store rooted at dataDir.
func New(dataDir string, log zerolog.Logger) *Store {
	return &Store{
		path:     filepath.Join(dataDir, FileName),
		provider: osKeyring{},
		log:      log.With().Str("component", "credstore").Logger(),
	}
}

// newWithProvider is the test constructor.
func newWithProvider(dataDir string, p keyringProvider, log zerolog.Logger) *Store {
	s := New(dataDir, log)
	s.provider = p
	return s
}

// Path returns the credential file path.
func (s *Store) Path() string { return s.path }

// masterKey fetches the AES key from the keyring, creating it on first use.
// A nil key with nil error means the keyring is unavailable.
func (s *Store) masterKey(create bool) ([]byte, error) {
	v, err := s.provider.Get(keyringService, keyringUser)
	switch {
	case err == nil:
		key, derr := base64.StdEncoding.DecodeString(v)
		if derr != nil || len(key) != keySize {
			return nil, fmt.Errorf("credstore: keyring entry malformed")
		}
		return key, nil
	case errors.Is(err, keyring.ErrNotFound):
		if !create {
			return nil, fmt.Errorf("credstore: master key missing")
		}
		key, kerr := newMasterKey()
		if kerr != nil {
			return nil, kerr
		}
		if serr := s.provider.Set(keyringService, keyringUser, base64.StdEncoding.EncodeToString(key)); serr != nil {
			// Keyring refused the write: treat as unavailable.
			return nil, nil
		}
		return key, nil
	default:
		// Keyring facility itself unavailable (headless host, no agent).
		return nil, nil
	}
}

// Save writes the secret, encrypted when the keyring cooperates.
func (s *Store) Save(secret string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("credstore: data dir: %w", err)
	}
	key, err := s.masterKey(true)
	if err != nil {
		return err
	}
	payload := secret
	if key != nil {
		payload, err = encryptValue(key, secret)
		if err != nil {
			return fmt.Errorf("credstore: encrypt: %w", err)
		}
	} else {
		s.log.Warn().Msg("OS keyring unavailable, storing credential in plaintext")
	}
	if err := os.WriteFile(s.path, []byte(payload), 0o600); err != nil {
		return fmt.Errorf("credstore: write: %w", err)
	}
	return nil
}

// Load returns the stored secret, or "" when none exists. An unreadable
// ciphertext (key rotated away, corruption) deletes the file and returns ""
// so a bad credential can never wedge startup.
func (s *Store) Load() (string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("credstore: read: %w", err)
	}
	value := string(raw)
	if len(value) < len(encPrefix) || value[:len(encPrefix)] != encPrefix {
		// Plaintext fallback file.
		return value, nil
	}
	key, err := s.masterKey(false)
	if err != nil || key == nil {
		s.log.Warn().Msg("credential file is encrypted but master key is gone, discarding")
		_ = os.Remove(s.path)
		return "", nil
	}
	secret, err := decryptValue(key, value)
	if err != nil {
		s.log.Warn().Msg("credential file unreadable, discarding")
		_ = os.Remove(s.path)
		return "", nil
	}
	return secret, nil
}

// Clear removes the credential file. Safe to call when nothing is stored.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("credstore: clear: %w", err)
	}
	return nil
}
