// Package filestore keeps uploaded files on local disk.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"showdown-grid/internal/domain"
)

// Store writes files below dir and reports URLs below prefix.
type Store struct {
	dir    string
	prefix string
}

func New(dir, prefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if prefix == "" {
		prefix = "/uploads"
	}
	return &Store{dir: dir, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

// Dir is the root directory files are written to.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	full, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return s.prefix + "/" + name, nil
}

func (s *Store) Delete(_ context.Context, name string) error {
	full, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *Store) resolve(name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" || clean != "/"+name {
		return "", fmt.Errorf("invalid file name %q: %w", name, domain.ErrValidation)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}
