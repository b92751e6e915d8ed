package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lotes/backend/internal/domain/directory"
	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/domain/shared"
)

const usersCollection = "users"

// ActorRepository implements identity.ActorRepository on the directory store
type ActorRepository struct {
	store directory.Store
}

// NewActorRepository creates a new actor repository
func NewActorRepository(store directory.Store) *ActorRepository {
	return &ActorRepository{store: store}
}

func actorPath(id string) string {
	return directory.Join(usersCollection, id)
}

func decodeActor(id string, data []byte) (*identity.Actor, error) {
	var a identity.Actor
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: actor %s: %v", ErrMalformedDocument, id, err)
	}
	a.ID = id
	return &a, nil
}

// FindByID finds an actor by id
func (r *ActorRepository) FindByID(ctx context.Context, id string) (*identity.Actor, error) {
	data, err := r.store.Get(ctx, actorPath(id))
	if errors.Is(err, directory.ErrNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeActor(id, data)
}

// Create stores a new actor unless the id is taken
func (r *ActorRepository) Create(ctx context.Context, a *identity.Actor) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	result := directory.ConditionalWrite(ctx, r.store, actorPath(a.ID), func(current []byte) ([]byte, bool) {
		if current != nil {
			return nil, false
		}
		return data, true
	})
	switch result.Outcome {
	case directory.Committed:
		return nil
	case directory.Conflict:
		return shared.ErrAlreadyExists.WithMessage("actor " + a.ID + " already exists")
	default:
		return result.Err
	}
}

// Update applies fn to the stored actor inside a conditional write
func (r *ActorRepository) Update(ctx context.Context, id string, fn func(a *identity.Actor) error) (*identity.Actor, error) {
	var (
		fnErr   error
		updated *identity.Actor
	)
	result := directory.ConditionalWrite(ctx, r.store, actorPath(id), func(current []byte) ([]byte, bool) {
		fnErr, updated = nil, nil
		if current == nil {
			fnErr = shared.ErrNotFound
			return nil, false
		}
		a, err := decodeActor(id, current)
		if err != nil {
			fnErr = err
			return nil, false
		}
		if err := fn(a); err != nil {
			fnErr = err
			return nil, false
		}
		next, err := json.Marshal(a)
		if err != nil {
			fnErr = err
			return nil, false
		}
		updated = a
		return next, true
	})

	switch result.Outcome {
	case directory.Committed:
		return updated, nil
	case directory.Conflict:
		return nil, fnErr
	default:
		return nil, result.Err
	}
}

// Delete removes an actor
func (r *ActorRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, actorPath(id))
}

// Settle debits price and adds loteID to the collection in one write. A lote
// that is already in the collection is left alone, so retries are safe.
func (r *ActorRepository) Settle(ctx context.Context, actorID, loteID string, price int64) (identity.Settlement, error) {
	var applied bool
	a, err := r.Update(ctx, actorID, func(a *identity.Actor) error {
		applied = a.Settle(loteID, price)
		return nil
	})
	if err != nil {
		return identity.Settlement{}, err
	}
	return identity.Settlement{Applied: applied, Balance: a.TokenBalance}, nil
}
