package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/lotes/backend/internal/application/media"
	infraconfig "github.com/lotes/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var _ media.ObjectStorage = (*GCSObjectStorage)(nil)

// GCSObjectStorage implements media.ObjectStorage on Google Cloud Storage
type GCSObjectStorage struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewGCSObjectStorage creates a GCS client. CredentialsFile may hold a path to
// a service account file or the JSON itself; empty uses default credentials.
func NewGCSObjectStorage(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...Option) (*GCSObjectStorage, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	clientOpts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if creds := strings.TrimSpace(cfg.CredentialsFile); creds != "" {
		if strings.HasPrefix(creds, "{") {
			clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(creds)))
		} else {
			clientOpts = append(clientOpts, option.WithCredentialsFile(creds))
		}
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	o := applyOptions(opts)
	return &GCSObjectStorage{client: client, bucket: cfg.Bucket, logger: o.logger}, nil
}

// Download reads an object
func (g *GCSObjectStorage) Download(ctx context.Context, key string) (*media.Object, error) {
	if key == "" {
		return nil, errors.New("storage key is required")
	}
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", media.ErrObjectNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %q: %w", key, err)
	}
	return &media.Object{Key: key, Data: data, ContentType: r.Attrs.ContentType}, nil
}

// Upload writes an object
func (g *GCSObjectStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

// Close releases the client
func (g *GCSObjectStorage) Close() error {
	return g.client.Close()
}
