package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hostel-tracker/apiserver/config"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Bucket() string
	// BaseURL is the URL objects of the bucket are served under.
	BaseURL() string
	Close() error
}

// Storage wraps an ObjectStorage backend and builds public media URLs.
type Storage struct {
	backend ObjectStorage
	baseURL string
}

// NewStorage constructs a Storage for backend. An empty publicBaseURL falls
// back to the backend's own bucket URL.
func NewStorage(backend ObjectStorage, publicBaseURL string) *Storage {
	base := strings.TrimSpace(publicBaseURL)
	if base == "" {
		base = backend.BaseURL()
	}
	return &Storage{
		backend: backend,
		baseURL: strings.TrimRight(base, "/"),
	}
}

// New selects the backend named in cfg.
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio":
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return NewStorage(client, cfg.PublicBaseURL), nil
	case "gcs":
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return NewStorage(client, cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Close releases the backend client.
func (s *Storage) Close() error {
	return s.backend.Close()
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// URL returns the public URL of key.
func (s *Storage) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL reverses URL. It reports false for URLs outside this storage.
func (s *Storage) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
