// Package selfupdate implements the crash-resumable self-modification path:
// proposing an update, and validating or rolling it back on the next start.
package selfupdate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SentinelFilename is the sentinel's name inside the state directory.
const SentinelFilename = "self_update.yaml"

// ErrNoSentinel is returned by Store.Load when no update is pending.
var ErrNoSentinel = errors.New("no pending self-update")

// Sentinel marks a committed self-modification awaiting validation.
type Sentinel struct {
	FilePath        string `yaml:"filePath"`
	CommitMessage   string `yaml:"commitMessage"`
	TimestampMillis int64  `yaml:"timestampMillis"`
	Attempt         int    `yaml:"attempt"`
}

// Validate checks the fields a rollback depends on.
func (s *Sentinel) Validate() error {
	if strings.TrimSpace(s.FilePath) == "" {
		return fmt.Errorf("sentinel has no filePath")
	}
	if s.Attempt < 1 {
		return fmt.Errorf("sentinel attempt must be >= 1, got %d", s.Attempt)
	}
	return nil
}

// Store reads and writes the sentinel file.
type Store struct {
	path string
}

// NewStore creates a store for the sentinel under stateDir.
func NewStore(stateDir string) *Store {
	return &Store{path: filepath.Join(stateDir, SentinelFilename)}
}

// Path returns the sentinel file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a sentinel file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the sentinel. It returns ErrNoSentinel when the file is absent
// and a parse error when it is present but unreadable.
func (s *Store) Load() (*Sentinel, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSentinel
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sentinel %s: %w", s.path, err)
	}

	var sentinel Sentinel
	if err := yaml.Unmarshal(data, &sentinel); err != nil {
		return nil, fmt.Errorf("failed to parse sentinel %s: %w", s.path, err)
	}
	if err := sentinel.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sentinel %s: %w", s.path, err)
	}
	return &sentinel, nil
}

// Save writes the sentinel atomically.
func (s *Store) Save(sentinel *Sentinel) error {
	if err := sentinel.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(sentinel)
	if err != nil {
		return fmt.Errorf("failed to marshal sentinel: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sentinel: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace sentinel: %w", err)
	}
	return nil
}

// Delete removes the sentinel. A missing file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete sentinel: %w", err)
	}
	return nil
}
