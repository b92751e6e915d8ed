package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lotes/backend/internal/domain/directory"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each document under one Redis key and commits conditional
// writes with WATCH/MULTI/EXEC.
type RedisStore struct {
	client      *redis.Client
	keyPrefix   string
	maxAttempts int
}

// NewRedisStore creates a store on an existing client
func NewRedisStore(client *redis.Client, keyPrefix string, maxAttempts int) *RedisStore {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RedisStore{
		client:      client,
		keyPrefix:   keyPrefix,
		maxAttempts: maxAttempts,
	}
}

// Get implements directory.Store
func (s *RedisStore) Get(ctx context.Context, path string) ([]byte, error) {
	loc, err := locate(path)
	if err != nil {
		return nil, err
	}
	doc, err := s.client.Get(ctx, s.keyPrefix+loc.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", loc.key, err)
	}
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
func (s *RedisStore) Set(ctx context.Context, path string, value []byte) error {
	_, _, err := s.apply(ctx, path, overwrite(value))
	return err
}

// Delete implements directory.Store
func (s *RedisStore) Delete(ctx context.Context, path string) error {
	_, _, err := s.apply(ctx, path, overwrite(nil))
	return err
}

// List implements directory.Store
func (s *RedisStore) List(ctx context.Context, collection string) ([]string, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	prefix := s.keyPrefix + collection + "/"
	ids := make([]string, 0)
	iter := s.client.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", collection, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Transaction implements directory.Store
func (s *RedisStore) Transaction(ctx context.Context, path string, m directory.Mutation, done directory.Completion) {
	go func() {
		committed, snapshot, err := s.apply(ctx, path, m)
		done(committed, snapshot, err)
	}()
}

// apply retries the optimistic transaction until it commits, the mutation
// aborts, or the attempts run out.
func (s *RedisStore) apply(ctx context.Context, path string, m directory.Mutation) (bool, []byte, error) {
	loc, err := locate(path)
	if err != nil {
		return false, nil, err
	}
	key := s.keyPrefix + loc.key

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		var (
			committed bool
			snapshot  []byte
		)
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			doc, err := tx.Get(ctx, key).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			updated, value, current, ok, err := applyMutation(doc, loc, m)
			if err != nil {
				return err
			}
			if !ok {
				snapshot = current
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if updated == nil {
					pipe.Del(ctx, key)
				} else {
					pipe.Set(ctx, key, updated, 0)
				}
				return nil
			})
			if err != nil {
				return err
			}
			committed, snapshot = true, value
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, nil, fmt.Errorf("redis transaction %s: %w", loc.key, err)
		}
		return committed, snapshot, nil
	}

	doc, err := s.client.Get(ctx, key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, nil, fmt.Errorf("redis transaction %s: %w", loc.key, err)
	}
	return exhausted(doc, loc, m)
}

// Ping implements directory.Store
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements directory.Store. The client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
