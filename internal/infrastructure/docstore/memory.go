package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/lotes/backend/internal/domain/directory"
)

// MemoryStore is an in-process directory store, used in development and tests.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// Get implements directory.Store
func (s *MemoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	loc, err := locate(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	doc := s.docs[loc.key]
	s.mu.Unlock()

	value, err := readAt(doc, loc.fields)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, directory.ErrNotFound
	}
	return value, nil
}

// Set implements directory.Store
func (s *MemoryStore) Set(ctx context.Context, path string, value []byte) error {
	_, _, err := s.apply(ctx, path, overwrite(value))
	return err
}

// Delete implements directory.Store
func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	_, _, err := s.apply(ctx, path, overwrite(nil))
	return err
}

// List implements directory.Store
func (s *MemoryStore) List(ctx context.Context, collection string) ([]string, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := collection + "/"
	s.mu.Lock()
	ids := make([]string, 0)
	for key := range s.docs {
		if strings.HasPrefix(key, prefix) {
			ids = append(ids, strings.TrimPrefix(key, prefix))
		}
	}
	s.mu.Unlock()

	sort.Strings(ids)
	return ids, nil
}

// Transaction implements directory.Store. The mutation runs under the store
// lock, so it never has to be retried.
func (s *MemoryStore) Transaction(ctx context.Context, path string, m directory.Mutation, done directory.Completion) {
	go func() {
		committed, snapshot, err := s.apply(ctx, path, m)
		done(committed, snapshot, err)
	}()
}

func (s *MemoryStore) apply(ctx context.Context, path string, m directory.Mutation) (bool, []byte, error) {
	loc, err := locate(path)
	if err != nil {
		return false, nil, err
	}
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated, value, current, ok, err := applyMutation(s.docs[loc.key], loc, m)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, current, nil
	}
	if updated == nil {
		delete(s.docs, loc.key)
	} else {
		s.docs[loc.key] = updated
	}
	return true, value, nil
}

// Ping implements directory.Store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements directory.Store
func (s *MemoryStore) Close() error {
	return nil
}
