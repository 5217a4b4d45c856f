// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"fmt"
	"sync"

	"github.com/credkeep/credkeep/internal/util"
	"github.com/credkeep/credkeep/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing and for embedding a store that never touches disk.
type Repository struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string][]byte)}
}

func (r *Repository) Load(name string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.data[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, storage.ErrNotFound)
	}
	return util.CopyBytes(data), nil
}

func (r *Repository) Store(name string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name] = util.CopyBytes(data)
	return nil
}

// Names returns the names of all stored blobs in no particular order.
func (r *Repository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.data))
	for k := range r.data {
		names = append(names, k)
	}
	return names
}
