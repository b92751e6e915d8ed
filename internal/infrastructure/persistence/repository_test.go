package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lotes/backend/internal/domain/directory"
	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/domain/lote"
	"github.com/lotes/backend/internal/domain/shared"
	"github.com/lotes/backend/internal/infrastructure/config"
	"github.com/lotes/backend/internal/infrastructure/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteDirectory(t *testing.T) directory.Store {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.AutoMigrate())
	return docstore.NewSQLStore(db.DB, 1000)
}

func TestLoteRepository(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := NewLoteRepository(store)

	t.Run("missing lote", func(t *testing.T) {
		_, err := repo.FindByID(ctx, "nope")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("save and find", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, &lote.Lote{ID: "r1", Price: 100}))
		require.NoError(t, repo.Save(ctx, &lote.Lote{ID: "r2", Price: 80}))

		l, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, int64(100), l.Price)
		assert.Nil(t, l.Owner)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "r1", all[0].ID)
		assert.Equal(t, "r2", all[1].ID)
	})

	t.Run("malformed document", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "lotes/bad", []byte(`{"price":"lots"}`)))
		_, err := repo.FindByID(ctx, "bad")
		assert.ErrorIs(t, err, ErrMalformedDocument)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2, "malformed lotes are skipped in listings")
	})

	t.Run("owner is assigned once", func(t *testing.T) {
		at := time.UnixMilli(1714564800000)
		first := repo.AssignOwner(ctx, "r1", lote.NewOwner("u1", "Ana", at))
		require.Equal(t, directory.Committed, first.Outcome)
		assert.Equal(t, "u1", first.Owner.ActorID)

		second := repo.AssignOwner(ctx, "r1", lote.NewOwner("u2", "Bo", at))
		require.Equal(t, directory.Conflict, second.Outcome)
		require.NotNil(t, second.Owner)
		assert.Equal(t, "u1", second.Owner.ActorID, "conflict reports the existing owner")

		l, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		require.NotNil(t, l.Owner)
		assert.Equal(t, lote.Owner{ActorID: "u1", DisplayName: "Ana", AcquiredAt: 1714564800000}, *l.Owner)
		assert.Equal(t, int64(100), l.Price, "assigning the owner keeps the other fields")
	})

	t.Run("publish refuses owned lotes", func(t *testing.T) {
		require.NoError(t, repo.Publish(ctx, &lote.Lote{ID: "r2", Price: 90}))
		l, err := repo.FindByID(ctx, "r2")
		require.NoError(t, err)
		assert.Equal(t, int64(90), l.Price)

		err = repo.Publish(ctx, &lote.Lote{ID: "r1", Price: 1})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		l, err = repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, int64(100), l.Price)
		assert.NotNil(t, l.Owner)
	})
}

func TestActorRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewActorRepository(newSQLiteDirectory(t))

	actor, err := identity.NewActor("u1", "ana", "Ana", 150)
	require.NoError(t, err)

	t.Run("create once", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, actor))
		assert.ErrorIs(t, repo.Create(ctx, actor), shared.ErrAlreadyExists)

		found, err := repo.FindByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, actor.Name, found.Name)
		assert.Equal(t, identity.RoleMember, found.Role)
	})

	t.Run("update", func(t *testing.T) {
		updated, err := repo.Update(ctx, "u1", func(a *identity.Actor) error {
			return a.Rename("ana", "Ana B.")
		})
		require.NoError(t, err)
		assert.Equal(t, "Ana B.", updated.DisplayName)

		boom := errors.New("rejected")
		_, err = repo.Update(ctx, "u1", func(*identity.Actor) error { return boom })
		assert.ErrorIs(t, err, boom)

		_, err = repo.Update(ctx, "ghost", func(*identity.Actor) error { return nil })
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("settle is idempotent per lote", func(t *testing.T) {
		s, err := repo.Settle(ctx, "u1", "r1", 100)
		require.NoError(t, err)
		assert.True(t, s.Applied)
		assert.Equal(t, int64(50), s.Balance)

		s, err = repo.Settle(ctx, "u1", "r1", 100)
		require.NoError(t, err)
		assert.False(t, s.Applied)
		assert.Equal(t, int64(50), s.Balance)

		found, err := repo.FindByID(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, found.Owns("r1"))
	})

	t.Run("concurrent settlements of distinct lotes all apply", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &identity.Actor{ID: "u9", Role: identity.RoleMember, TokenBalance: 100}))

		var wg sync.WaitGroup
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := repo.Settle(ctx, "u9", id, 10)
				assert.NoError(t, err)
			}(id)
		}
		wg.Wait()

		found, err := repo.FindByID(ctx, "u9")
		require.NoError(t, err)
		assert.Equal(t, int64(50), found.TokenBalance)
		assert.Len(t, found.Lotes, 5)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "u1"))
		_, err := repo.FindByID(ctx, "u1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestAccountRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(docstore.NewMemoryStore())

	require.NoError(t, repo.ClaimEmail(ctx, "Ana@Example.com", "u1"))
	require.NoError(t, repo.ClaimEmail(ctx, "ana@example.com", "u1"), "re-claiming your own email succeeds")
	assert.ErrorIs(t, repo.ClaimEmail(ctx, "ANA@example.com", "u2"), shared.ErrAlreadyExists)

	id, err := repo.FindActorIDByEmail(ctx, "ana@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	require.NoError(t, repo.ReleaseEmail(ctx, "ana@example.com", "u2"), "releasing someone else's claim is a no-op")
	_, err = repo.FindActorIDByEmail(ctx, "ana@example.com")
	require.NoError(t, err)

	require.NoError(t, repo.ReleaseEmail(ctx, "ana@example.com", "u1"))
	_, err = repo.FindActorIDByEmail(ctx, "ana@example.com")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	acc := &identity.Account{ActorID: "u1", Email: "ana@example.com", PasswordHash: "hash", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Save(ctx, acc))
	found, err := repo.FindByActorID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "hash", found.PasswordHash)

	require.NoError(t, repo.Delete(ctx, "u1"))
	_, err = repo.FindByActorID(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
