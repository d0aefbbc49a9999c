package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/nsmonitor/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	objects map[string][]byte
	ensured bool
}

func (m *memoryBackend) EnsureBucket(context.Context) error {
	m.ensured = true
	return nil
}

func (m *memoryBackend) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBackend) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryBackend) Bucket() string { return "project-files" }

func TestStorageDelegatesToBackend(t *testing.T) {
	ctx := context.Background()
	backend := &memoryBackend{objects: map[string][]byte{}}
	s := NewStorage(backend, "memory")

	require.NoError(t, s.EnsureBucket(ctx))
	assert.True(t, backend.ensured)
	assert.Equal(t, "project-files", s.Bucket())
	assert.Equal(t, "memory", s.Backend())

	require.NoError(t, s.Put(ctx, "projects/1/photos/a.jpg", bytes.NewReader([]byte("img")), 3, "image/jpeg"))
	rc, err := s.Get(ctx, "projects/1/photos/a.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))

	require.NoError(t, s.Delete(ctx, "projects/1/photos/a.jpg"))
	_, err = s.Get(ctx, "projects/1/photos/a.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, config.StorageConfig{Backend: "ftp"})
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = Open(ctx, config.StorageConfig{Backend: "minio"})
	assert.ErrorContains(t, err, "minio: missing MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, MINIO_BUCKET")

	_, err = Open(ctx, config.StorageConfig{Backend: "s3"})
	assert.ErrorContains(t, err, "s3: missing S3_BUCKET")

	_, err = Open(ctx, config.StorageConfig{Backend: "gcs"})
	assert.ErrorContains(t, err, "gcs: missing GCS_BUCKET")
}

func TestRequireSettings(t *testing.T) {
	assert.NoError(t, requireSettings("minio", setting{"MINIO_BUCKET", "files"}))
	assert.EqualError(t,
		requireSettings("s3", setting{"S3_BUCKET", " "}, setting{"S3_REGION", "us-east-1"}),
		"s3: missing S3_BUCKET")

	assert.Equal(t, "application/octet-stream", contentTypeOrDefault(""))
	assert.Equal(t, "image/png", contentTypeOrDefault("image/png"))
}
