// Package directory defines the hierarchical key/value store that holds actors,
// lotes and accounts, addressed by slash-separated paths such as
// "lotes/r1/owner".
//
// Values are JSON documents. A nil value means the path holds nothing; writing
// nil removes the node.
package directory

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by Get when nothing is stored at the path.
	ErrNotFound = errors.New("directory: path not found")
	// ErrInvalidPath is returned for paths with empty or illegal segments.
	ErrInvalidPath = errors.New("directory: invalid path")
	// ErrTooManyAttempts is reported when a transaction keeps losing races
	// against concurrent writers.
	ErrTooManyAttempts = errors.New("directory: transaction retried too many times")
)

// Mutation receives the value currently stored at a path (nil when absent) and
// returns the value to store. Returning ok=false aborts the transaction and
// leaves the stored value untouched.
//
// A store may call a Mutation several times for one transaction when another
// writer commits in between, so it must not have side effects.
type Mutation func(current []byte) (next []byte, ok bool)

// Completion is invoked exactly once when a transaction finishes. committed is
// false with a nil err when the mutation aborted. snapshot is the value the
// store holds at the path after the transaction.
type Completion func(committed bool, snapshot []byte, err error)

// Store is the directory store client.
type Store interface {
	// Get returns the value at path or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)
	// Set overwrites the value at path. A nil value deletes it.
	Set(ctx context.Context, path string, value []byte) error
	// Delete removes the value at path. Deleting an absent path is not an error.
	Delete(ctx context.Context, path string) error
	// List returns the sorted child keys of a top-level collection.
	List(ctx context.Context, collection string) ([]string, error)
	// Transaction runs m against the value at path and commits the result only
	// if no other writer changed it in the meantime. It returns immediately and
	// reports the outcome through done.
	Transaction(ctx context.Context, path string, m Mutation, done Completion)
	// Ping checks connectivity with the backing service.
	Ping(ctx context.Context) error
	// Close releases resources held by the store.
	Close() error
}

const separator = "/"

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, separator)
}

// Split breaks a path into its segments, rejecting empty or illegal ones.
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	segments := strings.Split(path, separator)
	for _, s := range segments {
		if !ValidSegment(s) {
			return nil, ErrInvalidPath
		}
	}
	return segments, nil
}

// ValidSegment reports whether s can be used as a single path segment.
func ValidSegment(s string) bool {
	if s == "" || len(s) > 768 {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
		switch r {
		case '/', '.', '#', '$', '[', ']':
			return false
		}
	}
	return true
}
