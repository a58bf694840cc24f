package storage

import (
	"context"
	"io"
	"testing"

	"github.com/hostel-tracker/apiserver/config"
)

type fakeBackend struct {
	base   string
	closed *bool
}

func (f fakeBackend) EnsureBucket(ctx context.Context) error { return nil }
func (f fakeBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return nil
}
func (f fakeBackend) Delete(ctx context.Context, key string) error { return nil }
func (f fakeBackend) Bucket() string { return "media" }
func (f fakeBackend) BaseURL() string { return f.base }
func (f fakeBackend) Close() error {
	if f.closed != nil {
		*f.closed = true
	}
	return nil
}

func TestStorageURL(t *testing.T) {
	s := NewStorage(fakeBackend{base: "http://localhost:9000/media"}, "")
	if got := s.URL("issues/a.jpg"); got != "http://localhost:9000/media/issues/a.jpg" {
		t.Fatalf("unexpected url: %s", got)
	}

	s = NewStorage(fakeBackend{base: "http://localhost:9000/media"}, "https://cdn.example.com/")
	if got := s.URL("/lostfound/b.png"); got != "https://cdn.example.com/lostfound/b.png" {
		t.Fatalf("unexpected url with public base: %s", got)
	}
}

func TestStorageKeyFromURL(t *testing.T) {
	s := NewStorage(fakeBackend{base: "https://storage.googleapis.com/media"}, "")

	key, ok := s.KeyFromURL("https://storage.googleapis.com/media/issues/a.jpg")
	if !ok || key != "issues/a.jpg" {
		t.Fatalf("unexpected key %q ok=%v", key, ok)
	}
	if _, ok := s.KeyFromURL("https://elsewhere.example.com/issues/a.jpg"); ok {
		t.Fatalf("expected foreign url to be rejected")
	}
	if _, ok := s.KeyFromURL("https://storage.googleapis.com/media/"); ok {
		t.Fatalf("expected empty key to be rejected")
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), config.StorageConfig{Backend: "ftp"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestNewMinioClientValidatesConfig(t *testing.T) {
	cases := []config.MinioConfig{
		{AccessKey: "a", SecretKey: "b", Bucket: "c"},
		{Endpoint: "localhost:9000", Bucket: "c"},
		{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"},
	}
	for _, cfg := range cases {
		if _, err := NewMinioClient(cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}

func TestMinioBaseURL(t *testing.T) {
	client, err := NewMinioClient(config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "hostel-tracker",
	})
	if err != nil {
		t.Fatalf("new minio client: %v", err)
	}
	if got := client.BaseURL(); got != "http://localhost:9000/hostel-tracker" {
		t.Fatalf("unexpected base url: %s", got)
	}
}

func TestStorageCloseReleasesBackend(t *testing.T) {
	closed := false
	s := NewStorage(fakeBackend{base: "http://localhost:9000/media", closed: &closed}, "")
	if err := s.Close(); err != nil || !closed {
		t.Fatalf("close: err=%v closed=%v", err, closed)
	}
}
