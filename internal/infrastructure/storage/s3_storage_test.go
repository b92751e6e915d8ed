package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lotes/backend/internal/application/media"
	"github.com/lotes/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, &config.StorageConfig{
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("half configured credentials return error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, &config.StorageConfig{
			Bucket:      "test-bucket",
			AccessKeyID: "test-key",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be set together")
	})

	t.Run("valid config creates storage", func(t *testing.T) {
		s, err := NewS3ObjectStorage(ctx, &config.StorageConfig{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			Endpoint:        "localhost:9000",
			UsePathStyle:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, "test-bucket", s.GetBucket())
	})
}

// fakeS3 serves a path-style bucket from memory
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	puts    []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte(body))
	case http.MethodPut:
		f.puts = append(f.puts, r.URL.Path+" "+r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3Storage(t *testing.T, fake *fakeS3) *S3ObjectStorage {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3ObjectStorage(context.Background(), &config.StorageConfig{
		Bucket:          "images",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        srv.URL,
		UsePathStyle:    true,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s
}

func TestS3ObjectStorage_Download(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"/images/lotes/a.png": "png-bytes"}}
	s := newFakeS3Storage(t, fake)
	ctx := context.Background()

	t.Run("reads body and content type", func(t *testing.T) {
		obj, err := s.Download(ctx, "lotes/a.png")
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(obj.Data))
		assert.Equal(t, "image/png", obj.ContentType)
		assert.Equal(t, "lotes/a.png", obj.Key)
	})

	t.Run("missing key maps to not found", func(t *testing.T) {
		_, err := s.Download(ctx, "lotes/missing.png")
		require.Error(t, err)
		assert.ErrorIs(t, err, media.ErrObjectNotFound)
	})

	t.Run("empty key returns error", func(t *testing.T) {
		_, err := s.Download(ctx, "")
		require.Error(t, err)
	})
}

func TestS3ObjectStorage_Upload(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}
	s := newFakeS3Storage(t, fake)

	err := s.Upload(context.Background(), "lotes/thumbs/350_a.png", []byte("thumb"), "image/png")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "/images/lotes/thumbs/350_a.png image/png", fake.puts[0])

	require.Error(t, s.Upload(context.Background(), "", nil, "image/png"))
}
