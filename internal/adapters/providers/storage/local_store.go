package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
)

// LocalStore serves objects straight from a directory on disk. Used in
// development and tests where no remote store is configured.
type LocalStore struct {
	root string
}

var _ providers.ObjectStore = (*LocalStore)(nil)

// NewLocalStore creates an object store rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// ResolveURL returns the on-disk path for an object.
func (s *LocalStore) ResolveURL(objectPath string) string {
	if filepath.IsAbs(objectPath) {
		return objectPath
	}
	return filepath.Join(s.root, objectPath)
}

// Download returns the on-disk path directly. The caller does not own the
// file, so the returned cleanup is a no-op.
func (s *LocalStore) Download(ctx context.Context, objectPath string) (string, func(), error) {
	local := s.ResolveURL(objectPath)
	if _, err := os.Stat(local); err != nil {
		return "", nil, fmt.Errorf("object %s not found: %w", objectPath, err)
	}
	return local, func() {}, nil
}

// Delete removes the object file from disk.
func (s *LocalStore) Delete(ctx context.Context, objectPath string) error {
	if err := os.Remove(s.ResolveURL(objectPath)); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectPath, err)
	}
	return nil
}
