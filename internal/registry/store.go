package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// registryFile is the persisted aggregate: all profiles plus the id of the
// currently active one.
type registryFile struct {
	ActiveConnectionID string    `json:"activeConnectionId,omitempty"`
	Connections        []Profile `json:"connections"`
}

func (r registryFile) clone() registryFile {
	out := registryFile{ActiveConnectionID: r.ActiveConnectionID}
	out.Connections = make([]Profile, 0, len(r.Connections))
	for _, p := range r.Connections {
		out.Connections = append(out.Connections, p.Clone())
	}
	return out
}

// Store is the single-writer, file-backed connection registry. Every
// mutating operation rewrites the whole file before returning; on a failed
// write the in-memory state rolls back to the pre-call snapshot.
type Store struct {
	mu     sync.Mutex
	fs     afero.Fs
	path   string
	logger *slog.Logger
	data   registryFile
}

// Open loads the registry from path. An absent file is treated as an empty
// registry; a corrupt file is logged and replaced by an empty registry on
// the next mutation, matching the tolerant-load contract.
func Open(fs afero.Fs, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		fs:     fs,
		path:   path,
		logger: logger,
		data:   registryFile{Connections: []Profile{}},
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("no registry file found, starting fresh", "path", path)
			return s, nil
		}
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}

	var loaded registryFile
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn("registry file is corrupt, starting fresh", "path", path, "error", err)
		return s, nil
	}
	if loaded.Connections == nil {
		loaded.Connections = []Profile{}
	}
	// Drop a dangling active pointer rather than propagating it.
	if loaded.ActiveConnectionID != "" && findProfile(loaded.Connections, loaded.ActiveConnectionID) == -1 {
		logger.Warn("active connection id does not reference a stored profile, clearing it",
			"id", loaded.ActiveConnectionID)
		loaded.ActiveConnectionID = ""
	}

	s.data = loaded
	logger.Debug("loaded connection registry", "path", path, "connections", len(loaded.Connections))
	return s, nil
}

// Path returns the registry file path.
func (s *Store) Path() string {
	return s.path
}

func findProfile(profiles []Profile, id string) int {
	for i := range profiles {
		if profiles[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked rewrites the whole registry file. Callers must hold the
// mutex and are responsible for rolling back in-memory state on error.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode", Path: s.path, Err: err}
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return &StorageError{Op: "mkdir", Path: s.path, Err: err}
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0600); err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}

	return nil
}

// Add generates an id and creation timestamp for the input, appends it and
// persists. The first profile added to an empty registry becomes active.
func (s *Store) Add(input Input) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile := Profile{
		ID:            uuid.NewString(),
		Name:          input.Name,
		ServerAddress: input.ServerAddress,
		AuthMethod:    input.AuthMethod,
		Username:      input.Username,
		APIToken:      input.APIToken,
		SkipTLSVerify: input.SkipTLSVerify,
		CreatedAt:     time.Now().UTC(),
	}
	if err := profile.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid connection: %w", err)
	}

	snapshot := s.data.clone()
	s.data.Connections = append(s.data.Connections, profile)
	if len(s.data.Connections) == 1 {
		s.data.ActiveConnectionID = profile.ID
	}

	if err := s.persistLocked(); err != nil {
		s.data = snapshot
		return Profile{}, err
	}

	s.logger.Info("added connection", "name", profile.Name, "id", profile.ID)
	return profile.Clone(), nil
}

// Update merges the non-nil fields of upd into the stored profile.
func (s *Store) Update(id string, upd Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := findProfile(s.data.Connections, id)
	if idx == -1 {
		return fmt.Errorf("connection %q: %w", id, ErrNotFound)
	}

	snapshot := s.data.clone()
	p := &s.data.Connections[idx]
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.ServerAddress != nil {
		p.ServerAddress = *upd.ServerAddress
	}
	if upd.AuthMethod != nil {
		p.AuthMethod = *upd.AuthMethod
	}
	if upd.Username != nil {
		p.Username = *upd.Username
	}
	if upd.APIToken != nil {
		p.APIToken = *upd.APIToken
	}
	if upd.SkipTLSVerify != nil {
		p.SkipTLSVerify = *upd.SkipTLSVerify
	}

	if err := p.Validate(); err != nil {
		s.data = snapshot
		return fmt.Errorf("invalid connection update: %w", err)
	}

	if err := s.persistLocked(); err != nil {
		s.data = snapshot
		return err
	}

	s.logger.Info("updated connection", "name", p.Name, "id", id)
	return nil
}

// Delete removes the profile. When the deleted profile was active, the
// pointer moves to the first remaining profile, or clears when none remain.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := findProfile(s.data.Connections, id)
	if idx == -1 {
		return fmt.Errorf("connection %q: %w", id, ErrNotFound)
	}

	snapshot := s.data.clone()
	name := s.data.Connections[idx].Name
	s.data.Connections = append(s.data.Connections[:idx], s.data.Connections[idx+1:]...)

	if s.data.ActiveConnectionID == id {
		if len(s.data.Connections) > 0 {
			s.data.ActiveConnectionID = s.data.Connections[0].ID
		} else {
			s.data.ActiveConnectionID = ""
		}
	}

	if err := s.persistLocked(); err != nil {
		s.data = snapshot
		return err
	}

	s.logger.Info("deleted connection", "name", name, "id", id)
	return nil
}

// SetActive points the registry at the given profile and bumps its
// last-used timestamp.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := findProfile(s.data.Connections, id)
	if idx == -1 {
		return fmt.Errorf("connection %q: %w", id, ErrNotFound)
	}

	snapshot := s.data.clone()
	now := time.Now().UTC()
	s.data.ActiveConnectionID = id
	s.data.Connections[idx].LastUsedAt = &now

	if err := s.persistLocked(); err != nil {
		s.data = snapshot
		return err
	}

	s.logger.Info("activated connection", "name", s.data.Connections[idx].Name, "id", id)
	return nil
}

// ClearActive clears the active pointer. Idempotent.
func (s *Store) ClearActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	s.data.ActiveConnectionID = ""

	if err := s.persistLocked(); err != nil {
		s.data = snapshot
		return err
	}

	s.logger.Info("cleared active connection")
	return nil
}

// Active returns the active profile, if any.
func (s *Store) Active() (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.ActiveConnectionID == "" {
		return Profile{}, false
	}
	idx := findProfile(s.data.Connections, s.data.ActiveConnectionID)
	if idx == -1 {
		return Profile{}, false
	}
	return s.data.Connections[idx].Clone(), true
}

// Get returns the profile with the given id.
func (s *Store) Get(id string) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := findProfile(s.data.Connections, id)
	if idx == -1 {
		return Profile{}, false
	}
	return s.data.Connections[idx].Clone(), true
}

// All returns a snapshot copy of every profile in display order.
func (s *Store) All() []Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Profile, 0, len(s.data.Connections))
	for _, p := range s.data.Connections {
		out = append(out, p.Clone())
	}
	return out
}

// ActiveID returns the raw active pointer, empty when none is set.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ActiveConnectionID
}

// IsConfigured reports whether at least one connection exists.
func (s *Store) IsConfigured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.Connections) > 0
}
