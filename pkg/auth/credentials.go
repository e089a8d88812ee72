// Package auth stores site session cookies across keychain, encrypted file,
// and environment backends.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Session holds the authentication material for one site profile. Cookie is
// the raw Cookie header value sent with every request.
type Session struct {
	Profile      string    `json:"profile"`
	Cookie       string    `json:"cookie"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// SessionStore is the interface for storing and retrieving sessions
type SessionStore interface {
	// Store saves the session for a profile
	Store(session *Session) error

	// Retrieve gets the session for a specific profile
	Retrieve(profile string) (*Session, error)

	// List returns all stored sessions
	List() ([]*Session, error)

	// Delete removes the session for a specific profile
	Delete(profile string) error

	// Exists checks if a session exists for a profile
	Exists(profile string) bool
}

// Manager handles session storage with fallback mechanisms
type Manager struct {
	stores []SessionStore
}

// NewManager creates a session manager with the available storage backends:
// system keychain first, encrypted file as fallback, environment last.
func NewManager() (*Manager, error) {
	var stores []SessionStore

	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves the session using the first store that accepts it
func (m *Manager) Store(session *Session) error {
	if session.Profile == "" {
		return errors.New("profile is required")
	}
	if session.Cookie == "" {
		return errors.New("session cookie is required")
	}

	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(session); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store session: %w", lastErr)
	}
	return errors.New("no available session stores")
}

// Retrieve gets the session from the first store that has it
func (m *Manager) Retrieve(profile string) (*Session, error) {
	for _, store := range m.stores {
		if session, err := store.Retrieve(profile); err == nil && session != nil {
			return session, nil
		}
	}
	return nil, fmt.Errorf("session not found for profile: %s", profile)
}

// RetrieveDefault gets the default session or the first stored one. The
// environment takes priority so CI runs can override stored material.
func (m *Manager) RetrieveDefault() (*Session, error) {
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if session, err := envStore.Retrieve(""); err == nil && session != nil {
			return session, nil
		}
	}

	sessions, err := m.List()
	if err == nil && len(sessions) > 0 {
		return sessions[0], nil
	}

	return nil, errors.New("no session found")
}

// List returns all stored sessions from all stores
func (m *Manager) List() ([]*Session, error) {
	sessionMap := make(map[string]*Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, session := range sessions {
			// Keep the most recently modified version
			if existing, ok := sessionMap[session.Profile]; !ok || session.LastModified.After(existing.LastModified) {
				sessionMap[session.Profile] = session
			}
		}
	}

	var result []*Session
	for _, session := range sessionMap {
		result = append(result, session)
	}

	return result, nil
}

// Delete removes the session from all stores
func (m *Manager) Delete(profile string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("session not found for profile: %s", profile)
	}

	return nil
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
		configDir = filepath.Join(home, "Library", "Application Support", "ssarchive")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "ssarchive")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "ssarchive")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "ssarchive")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeSession creates a copy of the session with the cookie masked
func SanitizeSession(session *Session) *Session {
	if session == nil {
		return nil
	}

	return &Session{
		Profile:      session.Profile,
		Cookie:       maskString(session.Cookie),
		UserAgent:    session.UserAgent,
		LastModified: session.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrStoreUnavailable = errors.New("session store unavailable")
)
