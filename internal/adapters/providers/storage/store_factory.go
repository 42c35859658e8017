package storage

import (
	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
	"github.com/zatekoja/cropsight-backend/pkg/config"
)

// NewObjectStore selects a store implementation from configuration. An empty
// base URL falls back to serving objects from the local filesystem.
func NewObjectStore(cfg config.StorageConfig) providers.ObjectStore {
	if cfg.BaseURL == "" {
		root := cfg.LocalRoot
		if root == "" {
			root = "."
		}
		return NewLocalStore(root)
	}
	return NewHTTPStore(cfg.BaseURL, cfg.Bucket, cfg.ServiceKey)
}
