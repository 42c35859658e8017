package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
)

// HTTPStore fetches objects from a Supabase-style storage REST API.
type HTTPStore struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
}

var _ providers.ObjectStore = (*HTTPStore)(nil)

// NewHTTPStore creates an object store backed by a remote storage API.
func NewHTTPStore(baseURL, bucket, serviceKey string) *HTTPStore {
	return &HTTPStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ResolveURL returns the public URL for a stored object path. Paths that are
// already absolute URLs pass through unchanged.
func (s *HTTPStore) ResolveURL(objectPath string) string {
	if strings.HasPrefix(objectPath, "http://") || strings.HasPrefix(objectPath, "https://") {
		return objectPath
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(objectPath, "/"))
}

// Download fetches an object into a scratch file and returns the local path
// together with a cleanup function that removes it. Callers must invoke
// cleanup once the file is no longer needed.
func (s *HTTPStore) Download(ctx context.Context, objectPath string) (string, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ResolveURL(objectPath), nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create download request: %w", err)
	}
	if s.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to download object %s: %w", objectPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("object store returned status %d for %s", resp.StatusCode, objectPath)
	}

	tmp, err := os.CreateTemp("", "cropsight-object-*"+path.Ext(objectPath))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close scratch file: %w", err)
	}

	return tmp.Name(), cleanup, nil
}

// Delete removes an object from the backing bucket.
func (s *HTTPStore) Delete(ctx context.Context, objectPath string) error {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(objectPath, "/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	if s.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("object store returned status %d deleting %s", resp.StatusCode, objectPath)
	}
	return nil
}
