// Package state loads and saves the daemon's full in-memory model. Every
// save rewrites the whole snapshot to a ".new" sibling and renames it over
// the state file, so a crash never leaves a half-written file behind.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pkt.systems/pslog"

	"pkt.systems/rsvpd/internal/core"
	"pkt.systems/rsvpd/internal/svcfields"
)

// Store persists snapshots to a single file.
type Store struct {
	path   string
	logger pslog.Logger
}

// NewStore builds a store for the given state file path.
func NewStore(path string, logger pslog.Logger) *Store {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return &Store{path: path, logger: svcfields.WithSubsystem(logger, "state")}
}

// Path returns the state file path.
func (s *Store) Path() string { return s.path }

// Load reads the state file. A missing file yields an empty snapshot.
func (s *Store) Load() (core.Snapshot, error) {
	var snap core.Snapshot
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("state.fresh", "path", s.path)
			return core.Snapshot{}, nil
		}
		return snap, fmt.Errorf("read state file %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return core.Snapshot{}, nil
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	s.logger.Info("state.loaded", "path", s.path, "hosts", len(snap.Hosts), "classes", len(snap.Classes))
	return snap, nil
}

// Save writes the snapshot to path+".new", syncs it, and renames it over
// the state file.
func (s *Store) Save(snap core.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := s.path + ".new"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	if dir, err := os.Open(filepath.Dir(s.path)); err == nil {
		_ = dir.Sync()
		dir.Close()
	}
	s.logger.Debug("state.saved", "path", s.path, "bytes", len(data))
	return nil
}
