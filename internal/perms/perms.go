// Package perms tracks the calendar permission pair (read+write).
//
// Grants persist as a small JSON file in the state directory so the
// engine remembers a denial across restarts and never retries
// destructive recovery behind the user's back. The pair is requested
// and revoked atomically; a partial grant is reported as denied.
package perms

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// grantFile is the on-disk shape of the grant record.
type grantFile struct {
	Read      bool      `json:"read"`
	Write     bool      `json:"write"`
	GrantedAt time.Time `json:"granted_at,omitempty"`
}

// Store loads, persists, and answers the calendar permission pair.
// Safe for concurrent use.
type Store struct {
	path string

	mu    sync.RWMutex
	grant grantFile
}

// Open loads the grant file at path, treating a missing file as
// "never granted".
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read grant file: %w", err)
	}
	if err := json.Unmarshal(data, &s.grant); err != nil {
		return nil, fmt.Errorf("failed to parse grant file %s: %w", path, err)
	}
	return s, nil
}

// Granted reports whether BOTH read and write are held.
func (s *Store) Granted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grant.Read && s.grant.Write
}

// Request records the read+write pair as granted and persists it.
// The UI layer calls this after the user accepts the prompt.
func (s *Store) Request() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grant = grantFile{Read: true, Write: true, GrantedAt: time.Now().UTC()}
	return s.persistLocked()
}

// Revoke clears both grants and persists the denial.
func (s *Store) Revoke() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grant = grantFile{}
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create grant directory: %w", err)
	}
	data, err := json.MarshalIndent(&s.grant, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal grant: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write grant file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace grant file: %w", err)
	}
	return nil
}
