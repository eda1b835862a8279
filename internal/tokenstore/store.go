package tokenstore

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"go-artists-client/internal/model"
)

// Store is the durable home of the credential record: access token, refresh
// token, expiry timestamp and username. The four fields live and die
// together; a record missing any of them reads back as absent.
//
// The store is the single source of truth for credentials. Only the auth
// gateway writes it; the request pipeline reads it directly for the
// token-attachment step.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

// Save persists the whole record atomically: the file is written to a
// temporary sibling and renamed into place, so a concurrent Load never
// observes a partial record.
func (s *Store) Save(creds model.Credentials) error {
	if !creds.Complete() {
		return os.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, s.path)
}

// Load returns the stored record. Any storage failure, corrupt content or
// incomplete record is reported as absent rather than as an error, so a
// broken credentials file can never take the caller down.
func (s *Store) Load() (model.Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("credential store unreadable, treating as absent", "path", s.path, "error", err)
		}
		return model.Credentials{}, false
	}

	var creds model.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		slog.Warn("credential store corrupt, treating as absent", "path", s.path, "error", err)
		return model.Credentials{}, false
	}

	if !creds.Complete() {
		return model.Credentials{}, false
	}

	return creds, true
}

// Clear removes the record. Removal failures are logged, not returned:
// logout must always succeed from the caller's perspective.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove credential store", "path", s.path, "error", err)
	}
}
