package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements SessionStore from environment variables. It
// exists so scripted runs can inject a session without touching disk.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-based session store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(session *Session) error {
	return ErrStoreUnavailable
}

// Retrieve gets the session from environment variables
func (e *EnvironmentStore) Retrieve(profile string) (*Session, error) {
	cookie := os.Getenv("SSARCHIVE_SESSION")
	userAgent := os.Getenv("SSARCHIVE_USER_AGENT")

	if cookie == "" {
		return nil, ErrSessionNotFound
	}

	// The environment carries no profile name
	if profile == "" {
		profile = "default"
	}

	return &Session{
		Profile:      profile,
		Cookie:       cookie,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}, nil
}

// List returns a single session if the environment variable is set
func (e *EnvironmentStore) List() ([]*Session, error) {
	session, err := e.Retrieve("")
	if err != nil {
		return []*Session{}, nil
	}
	return []*Session{session}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment session exists
func (e *EnvironmentStore) Exists(profile string) bool {
	return os.Getenv("SSARCHIVE_SESSION") != ""
}
