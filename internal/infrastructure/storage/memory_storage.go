package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lotes/backend/internal/application/media"
)

var _ media.ObjectStorage = (*MemoryObjectStorage)(nil)

// MemoryObjectStorage keeps objects in process memory.
// Use this for development and tests.
type MemoryObjectStorage struct {
	mu      sync.RWMutex
	objects map[string]media.Object
}

// NewMemoryObjectStorage creates an empty in-memory storage
func NewMemoryObjectStorage() *MemoryObjectStorage {
	return &MemoryObjectStorage{objects: make(map[string]media.Object)}
}

// Download returns a copy of the stored object
func (m *MemoryObjectStorage) Download(_ context.Context, key string) (*media.Object, error) {
	if key == "" {
		return nil, errors.New("storage key is required")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", media.ErrObjectNotFound, key)
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return &obj, nil
}

// Upload stores a copy of data
func (m *MemoryObjectStorage) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = media.Object{Key: key, Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

// Keys lists stored keys in order
func (m *MemoryObjectStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
