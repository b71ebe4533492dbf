// Package workset tracks the project files the agent may read and modify.
package workset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrOutsideRoot is returned for paths that resolve outside the project root.
var ErrOutsideRoot = errors.New("path escapes project root")

// Set is the working set. Paths are stored relative to the root using
// forward slashes.
type Set struct {
	root  string
	files map[string]struct{}
	mu    sync.RWMutex
}

// New creates an empty working set for root.
func New(root string) *Set {
	return &Set{root: root, files: make(map[string]struct{})}
}

// Root returns the project root.
func (s *Set) Root() string {
	return s.root
}

// Resolve maps path (relative to root, or absolute) to its absolute location
// and its normalized relative name.
func Resolve(root, path string) (abs, rel string, err error) {
	if strings.TrimSpace(path) == "" {
		return "", "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Join(root, path)
	}
	r, err := filepath.Rel(root, abs)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || r == "." {
		return "", "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return abs, filepath.ToSlash(r), nil
}

// Add puts an existing regular file into the set.
func (s *Set) Add(path string) (string, error) {
	abs, rel, err := Resolve(s.root, path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot add %s: %w", rel, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("cannot add %s: is a directory", rel)
	}
	s.put(rel)
	return rel, nil
}

// Track adds path without checking the file system. Used for files a diff
// has just created.
func (s *Set) Track(path string) error {
	_, rel, err := Resolve(s.root, path)
	if err != nil {
		return err
	}
	s.put(rel)
	return nil
}

func (s *Set) put(rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[rel] = struct{}{}
}

// Remove drops path and reports whether it was present.
func (s *Set) Remove(path string) bool {
	_, rel, err := Resolve(s.root, path)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[rel]
	delete(s.files, rel)
	return ok
}

// Contains reports whether path is in the set.
func (s *Set) Contains(path string) bool {
	_, rel, err := Resolve(s.root, path)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[rel]
	return ok
}

// List returns the sorted relative paths.
func (s *Set) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.files))
	for f := range s.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Replace swaps the whole set, skipping paths that no longer exist.
// It returns the paths that were dropped.
func (s *Set) Replace(paths []string) []string {
	files := make(map[string]struct{}, len(paths))
	var dropped []string
	for _, p := range paths {
		abs, rel, err := Resolve(s.root, p)
		if err != nil {
			dropped = append(dropped, p)
			continue
		}
		if _, err := os.Stat(abs); err != nil {
			dropped = append(dropped, p)
			continue
		}
		files[rel] = struct{}{}
	}

	s.mu.Lock()
	s.files = files
	s.mu.Unlock()
	return dropped
}
