package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Media namespaces.
const (
	NamespaceIssues    = "issues"
	NamespaceLostFound = "lostfound"
)

// ObjectStore is the object storage the media service writes to.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
	KeyFromURL(url string) (string, bool)
}

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// MediaService stores uploaded files and returns their public URLs.
type MediaService struct {
	store  ObjectStore
	logger *slog.Logger
}

func NewMediaService(store ObjectStore, logger *slog.Logger) *MediaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaService{store: store, logger: logger}
}

// Upload stores one file under namespace and returns its URL.
func (s *MediaService) Upload(ctx context.Context, namespace string, file Upload) (string, error) {
	if s == nil || s.store == nil {
		return "", ErrUpstream("media storage is not configured", nil)
	}
	if len(file.Data) == 0 {
		return "", ErrValidation("uploaded file is empty")
	}

	key := objectKey(namespace, file.Filename)
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.store.Put(ctx, key, bytes.NewReader(file.Data), int64(len(file.Data)), contentType); err != nil {
		return "", ErrUpstream("failed to upload media", err)
	}
	return s.store.URL(key), nil
}

// UploadAll stores files in order. When one upload fails the files already
// stored are removed again.
func (s *MediaService) UploadAll(ctx context.Context, namespace string, files []Upload) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, file := range files {
		url, err := s.Upload(ctx, namespace, file)
		if err != nil {
			s.Discard(ctx, urls)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// Discard removes stored media by URL, logging failures.
func (s *MediaService) Discard(ctx context.Context, urls []string) {
	if s == nil || s.store == nil {
		return
	}
	for _, url := range urls {
		key, ok := s.store.KeyFromURL(url)
		if !ok {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "delete media failed", "key", key, "error", err)
		}
	}
}

func objectKey(namespace, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, `\`, "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return namespace + "/" + uuid.NewString() + ext
}
