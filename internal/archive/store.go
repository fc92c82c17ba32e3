// Package archive owns the bytes of downloaded template archives: a flat
// directory tree under a configured root, addressed by file name.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store is a by-name archive directory rooted at a configured path.
type Store struct {
	root string
}

// NewStore creates the archive root if needed and resolves it to an
// absolute path so stored paths work from any working directory.
func NewStore(root string) (*Store, error) {
	if !filepath.IsAbs(root) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve archive root: %w", err)
		}
		root = abs
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}

	return &Store{root: root}, nil
}

// Root returns the absolute archive root.
func (s *Store) Root() string {
	return s.root
}

// Path resolves an archive name to its absolute location, rejecting names
// that would escape the root.
func (s *Store) Path(name string) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(os.PathSeparator) {
		return "", fmt.Errorf("invalid archive name %q", name)
	}
	return filepath.Join(s.root, name), nil
}

// Save streams an archive into the store under the given name, replacing
// any previous content, and returns its absolute path.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	target, err := s.Path(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to finish archive write: %w", err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to place archive: %w", err)
	}
	return target, nil
}

// Exists reports whether an archive with the given name is present.
func (s *Store) Exists(name string) bool {
	target, err := s.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(target)
	return err == nil
}

// Remove deletes an archive. Removing an absent archive is not an error.
func (s *Store) Remove(name string) error {
	target, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove archive: %w", err)
	}
	return nil
}
