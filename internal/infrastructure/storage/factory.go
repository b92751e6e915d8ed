package storage

import (
	"context"
	"fmt"

	"github.com/lotes/backend/internal/application/media"
	infraconfig "github.com/lotes/backend/internal/infrastructure/config"
)

// New creates the storage backend selected by cfg.Provider
func New(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...Option) (media.ObjectStorage, error) {
	switch cfg.Provider {
	case "", "memory":
		return NewMemoryObjectStorage(), nil
	case "s3":
		s, err := NewS3ObjectStorage(ctx, cfg, opts...)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "gcs":
		return NewGCSObjectStorage(ctx, cfg, opts...)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
