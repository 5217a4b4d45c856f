// Package storage provides the storage abstraction for credkeep blobs.
//
// A store is made of a few named blobs (the keystore, the security levels
// and the credentials), each a complete codec stream. Backends move whole
// blobs by name and know nothing about their contents.
package storage

import "errors"

// ErrNotFound is returned by Load when no blob with the given name exists.
var ErrNotFound = errors.New("not found")

// Repository defines the interface for blob storage.
type Repository interface {
	// Load returns the blob stored under name, or an error wrapping
	// ErrNotFound.
	Load(name string) ([]byte, error)
	// Store replaces the blob stored under name. Readers never observe a
	// partially written blob.
	Store(name string, data []byte) error
}
