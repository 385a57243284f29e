package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vidyasagar/gsurf/internal/browser"
)

// SessionFile is the session snapshot written to the data directory.
const SessionFile = "session.json"

// Session is the set of open tabs saved on quit.
type Session struct {
	Tabs    []browser.State `json:"tabs"`
	Active  int             `json:"active"`
	SavedAt time.Time       `json:"saved_at"`
}

// SessionStore saves and restores the tab session as JSON.
type SessionStore struct {
	path string
}

// NewSessionStore creates a session store in dataDir.
func NewSessionStore(dataDir string) *SessionStore {
	return &SessionStore{path: filepath.Join(dataDir, SessionFile)}
}

// Load returns the saved session. A missing file is an empty session.
func (s *SessionStore) Load() (Session, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("reading session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("parsing session: %w", err)
	}
	if sess.Active < 0 || sess.Active >= len(sess.Tabs) {
		sess.Active = 0
	}
	return sess, nil
}

// Save writes the session, replacing any previous one.
func (s *SessionStore) Save(sess Session) error {
	if sess.SavedAt.IsZero() {
		sess.SavedAt = time.Now()
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Clear removes the saved session.
func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}
