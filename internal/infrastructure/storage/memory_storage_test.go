package storage

import (
	"context"
	"testing"

	"github.com/lotes/backend/internal/application/media"
	"github.com/lotes/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryObjectStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryObjectStorage()

	data := []byte("abc")
	require.NoError(t, s.Upload(ctx, "b/x.jpg", data, "image/jpeg"))
	require.NoError(t, s.Upload(ctx, "a/y.png", []byte("def"), "image/png"))
	data[0] = 'z'

	obj, err := s.Download(ctx, "b/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(obj.Data))
	assert.Equal(t, "image/jpeg", obj.ContentType)

	_, err = s.Download(ctx, "nope")
	assert.ErrorIs(t, err, media.ErrObjectNotFound)

	assert.Equal(t, []string{"a/y.png", "b/x.jpg"}, s.Keys())
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, &config.StorageConfig{Provider: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryObjectStorage{}, s)

	_, err = New(ctx, &config.StorageConfig{Provider: "ftp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage provider")
}
