// Package session manages the authenticated session produced by a
// successful registration or login: the CMS-issued JWT and the user record.
// It replaces ambient browser storage with an explicit store that callers
// inject, created on login success and cleared on logout or 401.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession is returned when no session has been stored.
var ErrNoSession = errors.New("session: no stored session")

// User is the CMS user record kept alongside the token.
type User struct {
	ID       int                    `json:"id"`
	Username string                 `json:"username"`
	Email    string                 `json:"email"`
	Role     int                    `json:"role,omitempty"`
	Profile  map[string]interface{} `json:"profile,omitempty"`
}

// Session holds the bearer token and user for authenticated backend calls.
type Session struct {
	Token    string    `json:"token"`
	User     User      `json:"user"`
	StoredAt time.Time `json:"stored_at"`
}

// Expired reports whether the session token carries an exp claim in the
// past. Tokens without an exp claim are treated as unexpired; the backend
// remains the authority and 401 responses clear the session regardless.
func (s *Session) Expired(now time.Time) bool {
	if s.Token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}

// Store persists sessions between runs.
type Store interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// FileStore keeps the session in a JSON file, the analogue of the web
// client's token/user localStorage keys.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed session store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored session.
func (f *FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if s.Token == "" {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Save writes the session, creating parent directories as needed.
func (f *FileStore) Save(s *Session) error {
	if s == nil || s.Token == "" {
		return fmt.Errorf("session: refusing to save empty session")
	}
	if s.StoredAt.IsZero() {
		s.StoredAt = time.Now()
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Clear removes the stored session. Missing files are not an error.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// MemoryStore is an in-process store used in tests and short-lived runs.
type MemoryStore struct {
	session *Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load returns the stored session.
func (m *MemoryStore) Load() (*Session, error) {
	if m.session == nil {
		return nil, ErrNoSession
	}
	return m.session, nil
}

// Save stores the session.
func (m *MemoryStore) Save(s *Session) error {
	if s == nil || s.Token == "" {
		return fmt.Errorf("session: refusing to save empty session")
	}
	if s.StoredAt.IsZero() {
		s.StoredAt = time.Now()
	}
	m.session = s
	return nil
}

// Clear drops the stored session.
func (m *MemoryStore) Clear() error {
	m.session = nil
	return nil
}
