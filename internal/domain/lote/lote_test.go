package lote

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lotes/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLote(t *testing.T) {
	t.Run("creates unowned lote", func(t *testing.T) {
		l, err := NewLote("r1", 100)
		require.NoError(t, err)
		assert.Equal(t, "r1", l.ID)
		assert.Equal(t, int64(100), l.Price)
		assert.False(t, l.IsOwned())
	})

	t.Run("rejects negative price", func(t *testing.T) {
		_, err := NewLote("r1", -1)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects nested id", func(t *testing.T) {
		_, err := NewLote("r1/owner", 1)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestLote_AffordableWith(t *testing.T) {
	l := &Lote{ID: "r1", Price: 100}
	assert.True(t, l.AffordableWith(100))
	assert.True(t, l.AffordableWith(150))
	assert.False(t, l.AffordableWith(99))
}

func TestNewOwner(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	o := NewOwner("u1", "Ana", at)
	assert.Equal(t, "u1", o.ActorID)
	assert.Equal(t, "Ana", o.DisplayName)
	assert.Equal(t, at.UnixMilli(), o.AcquiredAt)
	assert.True(t, o.AcquiredTime().Equal(at))
}

func TestAcquisitionError(t *testing.T) {
	cause := errors.New("store down")
	err := fmt.Errorf("acquire: %w", NewAcquisitionError(KindInternal, CodeStoreFailure, cause))

	assert.Equal(t, KindInternal, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrLoteNotFound)
	assert.ErrorIs(t, NewAcquisitionError(KindAlreadyOwned, CodeHasOwner, cause), ErrHasOwner)
	assert.Equal(t, KindInternal, KindOf(cause))
	assert.Equal(t, KindUnauthorized, KindOf(ErrUnauthorized))
	assert.Equal(t, "already_owned: lote/has-owner", ErrHasOwner.Error())
}
