package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "ssarchive"
	keyringPrefix  = "session_"
)

// KeyringStore implements SessionStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keyring-based session store. It probes the
// keychain once so headless systems fall through to the encrypted file.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves the session to the system keychain
func (k *KeyringStore) Store(session *Session) error {
	if session == nil || session.Profile == "" {
		return ErrInvalidSession
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := keyringPrefix + session.Profile
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return nil
}

// Retrieve gets the session from the system keychain
func (k *KeyringStore) Retrieve(profile string) (*Session, error) {
	if profile == "" {
		return nil, ErrInvalidSession
	}

	key := keyringPrefix + profile
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// List returns all stored sessions from the keychain. The keyring API has
// no enumeration, so this always reports empty; the encrypted store covers
// listing.
func (k *KeyringStore) List() ([]*Session, error) {
	return []*Session{}, nil
}

// Delete removes the session from the system keychain
func (k *KeyringStore) Delete(profile string) error {
	if profile == "" {
		return ErrInvalidSession
	}

	key := keyringPrefix + profile
	if err := keyring.Delete(keyringService, key); err != nil {
		if err == keyring.ErrNotFound {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return nil
}

// Exists checks if a session exists in the keychain
func (k *KeyringStore) Exists(profile string) bool {
	if profile == "" {
		return false
	}

	_, err := keyring.Get(keyringService, keyringPrefix+profile)
	return err == nil
}
