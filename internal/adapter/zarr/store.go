// Package zarr reads rectangular space-time subsets out of Zarr v2 stores,
// the format NOAA publishes AORC under. It supports the slice of the format
// those stores actually use: C-order little-endian numeric arrays, optional
// zlib/gzip/zstd compression, consolidated metadata with per-key fallback,
// and absent chunks standing in for all-fill regions.
package zarr

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound reports a key with no object behind it. For chunk keys this is
// not an error condition: Zarr leaves all-fill chunks unwritten.
var ErrNotFound = errors.New("zarr: object not found")

// Store is read access to a Zarr hierarchy: keys are /-separated paths
// relative to the store root, e.g. "apcp/.zarray" or "apcp/4.0.2".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// PutStore is a Store that can also be written, used to build fixtures and
// synthetic datasets.
type PutStore interface {
	Store
	Put(ctx context.Context, key string, data []byte) error
}

// DirStore maps a Zarr hierarchy onto a local directory. It backs file://
// dataset URIs and test fixtures.
type DirStore struct {
	root string
}

// NewDirStore returns a store rooted at dir. The directory does not need to
// exist until the first Put.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Get reads the object at key, translating a missing file into ErrNotFound.
func (s *DirStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put writes the object at key, creating parent directories as needed.
func (s *DirStore) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Delete removes the object at key. Missing objects are not an error, so a
// fixture can drop chunks it never wrote.
func (s *DirStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// joinKey builds a store key from path segments, skipping empty ones.
func joinKey(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, strings.Trim(p, "/"))
		}
	}
	return strings.Join(kept, "/")
}
