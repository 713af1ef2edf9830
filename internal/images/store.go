// Package images caches product photos on the local filesystem so the
// catalog stays browsable offline.
package images

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store manages the image cache directory. File names are derived from the
// catalog ids, so a product's files can be removed without a lookup.
type Store struct {
	dir string
}

// NewStore creates the cache directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("images: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// ProductFile is the cache path for a product's main image.
func (s *Store) ProductFile(itemID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("product_%d.jpg", itemID))
}

// VariantFile is the cache path for a variant's image.
func (s *Store) VariantFile(variantID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("variant_%d.jpg", variantID))
}

// Save writes one image to the given cache path via a temp file, so a
// partial download never leaves a truncated file behind.
func (s *Store) Save(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(s.dir, "dl-*")
	if err != nil {
		return fmt.Errorf("images: temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("images: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("images: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("images: rename: %w", err)
	}
	return nil
}

// Resolve picks the display source for an image: the cached file when it
// exists, otherwise the remote URL. Either argument may be empty.
func (s *Store) Resolve(localPath, remoteURL string) string {
	if localPath != "" {
		if _, err := os.Stat(localPath); err == nil {
			return localPath
		}
	}
	return remoteURL
}

// Remove deletes cached files, ignoring ones already gone.
func (s *Store) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		_ = os.Remove(p)
	}
}
