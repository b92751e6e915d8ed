package media

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by ObjectStorage when a key does not exist
var ErrObjectNotFound = errors.New("object not found")

// Object is a stored blob with its content type
type Object struct {
	Key         string
	Data        []byte
	ContentType string
}

// ObjectStorage reads and writes image objects
type ObjectStorage interface {
	Download(ctx context.Context, key string) (*Object, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}
