// Package file provides a storage.Repository that keeps every blob in its own
// flat file inside a data directory.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/credkeep/credkeep/storage"
)

const (
	dirPerm  os.FileMode = 0700
	filePerm os.FileMode = 0600
)

// Repository implements storage.Repository on a directory of flat files.
type Repository struct {
	dir string
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository returns a Repository rooted at dir. The directory is created
// on the first Store.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the data directory.
func (r *Repository) Dir() string {
	return r.dir
}

func (r *Repository) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(r.dir, name), nil
}

func (r *Repository) Load(name string) ([]byte, error) {
	p, err := r.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func (r *Repository) Store(name string, data []byte) error {
	p, err := r.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, dirPerm); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return saveAtomically(p, data, filePerm)
}

// saveAtomically writes data to a temp file in the target's directory and
// renames it over path.
func saveAtomically(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".credkeep-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	committed = true
	return nil
}
