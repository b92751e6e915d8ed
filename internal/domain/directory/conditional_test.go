package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callbackStore only implements Transaction; it completes with a fixed outcome.
type callbackStore struct {
	Store
	committed bool
	snapshot  []byte
	err       error
	never     bool
}

func (s *callbackStore) Transaction(_ context.Context, _ string, m Mutation, done Completion) {
	if s.never {
		return
	}
	go func() {
		if s.err == nil {
			if _, ok := m(nil); !ok {
				done(false, s.snapshot, nil)
				return
			}
		}
		done(s.committed, s.snapshot, s.err)
	}()
}

func TestConditionalWrite(t *testing.T) {
	accept := func(current []byte) ([]byte, bool) { return []byte(`"v"`), current == nil }

	t.Run("committed carries the stored value", func(t *testing.T) {
		s := &callbackStore{committed: true, snapshot: []byte(`"v"`)}
		r := ConditionalWrite(context.Background(), s, "a/b", accept)
		assert.Equal(t, Committed, r.Outcome)
		assert.Equal(t, []byte(`"v"`), r.Value)
		assert.NoError(t, r.Err)
	})

	t.Run("aborted mutation is a conflict", func(t *testing.T) {
		s := &callbackStore{snapshot: []byte(`"other"`)}
		reject := func([]byte) ([]byte, bool) { return nil, false }
		r := ConditionalWrite(context.Background(), s, "a/b", reject)
		assert.Equal(t, Conflict, r.Outcome)
		assert.Equal(t, []byte(`"other"`), r.Value)
	})

	t.Run("store error is a failure", func(t *testing.T) {
		storeErr := errors.New("boom")
		s := &callbackStore{err: storeErr}
		r := ConditionalWrite(context.Background(), s, "a/b", accept)
		assert.Equal(t, Failed, r.Outcome)
		assert.ErrorIs(t, r.Err, storeErr)
	})

	t.Run("context deadline ends the wait", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		r := ConditionalWrite(ctx, &callbackStore{never: true}, "a/b", accept)
		assert.Equal(t, Failed, r.Outcome)
		assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
	})
}

func TestSplit(t *testing.T) {
	segments, err := Split("lotes/r1/owner")
	require.NoError(t, err)
	assert.Equal(t, []string{"lotes", "r1", "owner"}, segments)

	for _, bad := range []string{"", "lotes//owner", "lotes/r.1", "users/a#b", "x/$y", "a/[b]", "a/b\n"} {
		_, err := Split(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "conflict", Conflict.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}
