package providers

import (
	"context"
)

// ObjectStore defines the interface for the image object storage backend
type ObjectStore interface {
	// ResolveURL returns the public URL for a stored object path
	ResolveURL(path string) string

	// Download fetches an object into a local scratch file and returns
	// its path together with a cleanup function that removes it
	Download(ctx context.Context, path string) (string, func(), error)

	// Delete removes an object from the store
	Delete(ctx context.Context, path string) error
}
