// Package store persists the daemon's settings: learned per-signature offsets,
// feature toggles, and platform capability flags. State is a flat key/value
// JSON file written atomically; last write wins, no expiry.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore implements domain.SettingsStore on a local JSON file. Getters
// return zero defaults on any failure and setters report success as a bool,
// mirroring the host-settings contract the policies are written against.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]any
}

// NewFileStore loads the settings file at path, treating a missing file as an
// empty store. A corrupt file is an error; silently discarding learned
// offsets would be worse than refusing to start.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: make(map[string]any)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", path, err)
	}

	return s, nil
}

// GetBool returns the boolean stored under key, or false when the key is
// missing or holds another type.
func (s *FileStore) GetBool(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		slog.Warn("Setting has unexpected type, using default", "key", key, "want", "bool")
		return false
	}
	return b
}

// GetInt returns the integer stored under key, or 0 when the key is missing
// or holds another type.
func (s *FileStore) GetInt(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := s.values[key].(type) {
	case nil:
		return 0
	case float64:
		// JSON numbers decode as float64.
		return int(v)
	case int:
		return v
	default:
		slog.Warn("Setting has unexpected type, using default", "key", key, "want", "int")
		return 0
	}
}

// GetString returns the string stored under key, or "" when the key is
// missing or holds another type.
func (s *FileStore) GetString(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return ""
	}
	str, ok := v.(string)
	if !ok {
		slog.Warn("Setting has unexpected type, using default", "key", key, "want", "string")
		return ""
	}
	return str
}

// SetBool stores a boolean and reports whether it was persisted.
func (s *FileStore) SetBool(key string, value bool) bool { return s.set(key, value) }

// SetInt stores an integer and reports whether it was persisted.
func (s *FileStore) SetInt(key string, value int) bool { return s.set(key, value) }

// SetString stores a string and reports whether it was persisted.
func (s *FileStore) SetString(key string, value string) bool { return s.set(key, value) }

func (s *FileStore) set(key string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	if err := s.persistLocked(); err != nil {
		slog.Warn("Failed to persist setting", "key", key, "error", err)
		return false
	}
	return true
}

// persistLocked writes the full value map through a temp file and rename so a
// crash mid-write never truncates learned offsets.
func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".offsetpilot-*")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp settings file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
