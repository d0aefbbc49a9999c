package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nsmonitor/apiserver/config"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Attachment keys embed a random name and are never rewritten, so stored
// objects may be cached indefinitely.
const attachmentCacheControl = "public, max-age=31536000, immutable"

const defaultContentType = "application/octet-stream"

// setting is a named configuration value checked by requireSettings.
type setting struct {
	name  string
	value string
}

// requireSettings reports every empty setting of a backend in one error.
func requireSettings(backend string, settings ...setting) error {
	var missing []string
	for _, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			missing = append(missing, s.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%s: missing %s", backend, strings.Join(missing, ", "))
}

func contentTypeOrDefault(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return defaultContentType
	}
	return contentType
}

// ObjectStorage is implemented by each attachment backend.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage holds project attachment files in one bucket.
type Storage struct {
	backend ObjectStorage
	name    string
}

func NewStorage(backend ObjectStorage, name string) *Storage {
	return &Storage{backend: backend, name: name}
}

// Open builds the backend selected by cfg.Backend and makes sure its
// bucket exists.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch name {
	case "", "minio":
		name = "minio"
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case "s3":
		backend, err = NewS3Client(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s storage: %w", name, err)
	}

	s := NewStorage(backend, name)
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure %s bucket %q: %w", name, backend.Bucket(), err)
	}
	return s, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens an object. Missing keys yield ErrObjectNotFound.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// Backend names the configured backend.
func (s *Storage) Backend() string {
	return s.name
}
