package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lotes/backend/internal/domain/directory"
	"github.com/lotes/backend/internal/domain/lote"
	"github.com/lotes/backend/internal/domain/shared"
)

const lotesCollection = "lotes"

// ErrMalformedDocument is returned when a stored document cannot be decoded
var ErrMalformedDocument = errors.New("malformed directory document")

// LoteRepository implements lote.Repository on the directory store
type LoteRepository struct {
	store directory.Store
}

// NewLoteRepository creates a new lote repository
func NewLoteRepository(store directory.Store) *LoteRepository {
	return &LoteRepository{store: store}
}

// FindByID finds a lote by id
func (r *LoteRepository) FindByID(ctx context.Context, id string) (*lote.Lote, error) {
	data, err := r.store.Get(ctx, directory.Join(lotesCollection, id))
	if errors.Is(err, directory.ErrNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var l lote.Lote
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: lote %s: %v", ErrMalformedDocument, id, err)
	}
	if l.Price < 0 {
		return nil, fmt.Errorf("%w: lote %s has negative price", ErrMalformedDocument, id)
	}
	l.ID = id
	return &l, nil
}

// FindAll returns every lote ordered by id, skipping documents that cannot be decoded
func (r *LoteRepository) FindAll(ctx context.Context) ([]lote.Lote, error) {
	ids, err := r.store.List(ctx, lotesCollection)
	if err != nil {
		return nil, err
	}
	lotes := make([]lote.Lote, 0, len(ids))
	for _, id := range ids {
		l, err := r.FindByID(ctx, id)
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, ErrMalformedDocument) {
			continue
		}
		if err != nil {
			return nil, err
		}
		lotes = append(lotes, *l)
	}
	return lotes, nil
}

// Save creates or replaces a lote document
func (r *LoteRepository) Save(ctx context.Context, l *lote.Lote) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, directory.Join(lotesCollection, l.ID), data)
}

// Publish creates or reprices a lote unless it already has an owner
func (r *LoteRepository) Publish(ctx context.Context, l *lote.Lote) error {
	unowned := lote.Lote{ID: l.ID, Price: l.Price}
	data, err := json.Marshal(unowned)
	if err != nil {
		return err
	}

	result := directory.ConditionalWrite(ctx, r.store, directory.Join(lotesCollection, l.ID),
		func(current []byte) ([]byte, bool) {
			if current != nil {
				var existing lote.Lote
				if json.Unmarshal(current, &existing) == nil && existing.IsOwned() {
					return nil, false
				}
			}
			return data, true
		})
	switch result.Outcome {
	case directory.Committed:
		return nil
	case directory.Conflict:
		return shared.ErrInvalidState.WithMessage("lote " + l.ID + " already has an owner")
	default:
		return result.Err
	}
}

// AssignOwner writes the owner record only while the lote has none
func (r *LoteRepository) AssignOwner(ctx context.Context, id string, owner lote.Owner) lote.Assignment {
	record, err := json.Marshal(owner)
	if err != nil {
		return lote.Assignment{Outcome: directory.Failed, Err: err}
	}

	result := directory.ConditionalWrite(ctx, r.store, directory.Join(lotesCollection, id, "owner"),
		func(current []byte) ([]byte, bool) {
			if current != nil {
				return nil, false
			}
			return record, true
		})

	assignment := lote.Assignment{Outcome: result.Outcome, Err: result.Err}
	if result.Outcome == directory.Failed || result.Value == nil {
		return assignment
	}
	var stored lote.Owner
	if err := json.Unmarshal(result.Value, &stored); err == nil {
		assignment.Owner = &stored
	}
	return assignment
}
