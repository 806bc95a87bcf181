package cardstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

//go:embed cards/*.json
var embeddedCards embed.FS

// FSStore serves documents from an fs.FS holding flat *.json files.
type FSStore struct {
	fsys    fs.FS
	backend string
}

// NewEmbedded returns the store backed by the compiled-in demo cards.
func NewEmbedded() *FSStore {
	sub, err := fs.Sub(embeddedCards, "cards")
	if err != nil {
		// fs.Sub only fails on an invalid literal path
		panic(err)
	}
	return &FSStore{fsys: sub, backend: BackendEmbedded}
}

// NewDir returns a store reading documents from dir on disk.
func NewDir(dir string) (*FSStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cardstore: open dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cardstore: %q is not a directory", dir)
	}
	return &FSStore{fsys: os.DirFS(dir), backend: BackendDir}, nil
}

// Name implements Store.
func (s *FSStore) Name() string { return s.backend }

// Get implements Store.
func (s *FSStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("cardstore: read %s: %w", name, err)
	}
	return data, nil
}

// List returns the names of all *.json documents, sorted.
func (s *FSStore) List() ([]string, error) {
	names, err := fs.Glob(s.fsys, "*.json")
	if err != nil {
		return nil, fmt.Errorf("cardstore: list: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close implements Store.
func (s *FSStore) Close() error { return nil }
