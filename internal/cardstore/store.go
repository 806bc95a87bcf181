// Package cardstore provides read access to Adaptive Card documents keyed by
// file name. Documents are opaque bytes; parsing belongs to the card package.
//
// Backends:
//   - embedded: the demo card set compiled into the binary
//   - dir: a directory of *.json files
//   - sqlite: a local database table
//   - r2: Cloudflare R2 (S3 API), optionally zstd compressed
//   - redis: one string key per document
package cardstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendEmbedded = "embedded"
	BackendDir      = "dir"
	BackendSQLite   = "sqlite"
	BackendR2       = "r2"
	BackendRedis    = "redis"
)

// ErrNotFound is returned when a store has no document under the given name.
var ErrNotFound = errors.New("cardstore: document not found")

// ErrInvalidName is returned for names that are empty or escape the store root.
var ErrInvalidName = errors.New("cardstore: invalid document name")

// Store reads card documents by name.
type Store interface {
	// Name returns the backend name (one of the Backend* constants).
	Name() string
	// Get returns the raw document bytes, or ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)
	// Close releases backend resources.
	Close() error
}

// Writer is implemented by stores that accept new documents.
type Writer interface {
	Store
	Put(ctx context.Context, name string, data []byte) error
}

// ValidateName rejects names that are empty, contain a path separator,
// or are not clean relative file names.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if path.Clean(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
