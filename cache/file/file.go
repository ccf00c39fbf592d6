// Package file implements the filesystem cache store. Every location maps to
// one file below the root directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/raember/spoofbot/cache"
)

// Store keeps cache entries as plain files under a root directory.
type Store struct {
	root string
}

// New creates the root directory if needed and returns a store over it.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, cache.ValidationError{Reason: "empty root path"}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: filepath.Clean(root)}, nil
}

// Root returns the root directory of the store.
func (s *Store) Root() string {
	return s.root
}

// path resolves a location below the root. filepath.Join collapses dot
// segments, so a location carrying ".." could name a file outside the root;
// those are rejected instead of resolved.
func (s *Store) path(loc cache.Location) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(string(loc)))
	if path == s.root || !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("location %q resolves outside the cache root", loc)
	}
	return path, nil
}

func (s *Store) Lookup(_ context.Context, loc cache.Location) ([]byte, error) {
	path, err := s.path(loc)
	if err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, cache.ErrEntryNotFound
	}
	return payload, err
}

func (s *Store) Store(_ context.Context, loc cache.Location, payload []byte) error {
	path, err := s.path(loc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func (s *Store) Delete(_ context.Context, loc cache.Location) error {
	path, err := s.path(loc)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cache.ErrEntryNotFound
	}
	return err
}
