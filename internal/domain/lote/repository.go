package lote

import (
	"context"

	"github.com/lotes/backend/internal/domain/directory"
)

// Assignment is the outcome of a conditional owner write. Owner is the record
// that was committed on directory.Committed, or the existing owner when one
// was observed on directory.Conflict.
type Assignment struct {
	Outcome directory.Outcome
	Owner   *Owner
	Err     error
}

// Repository defines persistence for lotes
type Repository interface {
	// FindByID returns the lote or shared.ErrNotFound
	FindByID(ctx context.Context, id string) (*Lote, error)

	// FindAll returns every lote ordered by id
	FindAll(ctx context.Context) ([]Lote, error)

	// Save creates or replaces a lote document
	Save(ctx context.Context, l *Lote) error

	// Publish writes the price of l, failing with shared.ErrInvalidState when
	// the stored lote already has an owner
	Publish(ctx context.Context, l *Lote) error

	// AssignOwner stores owner only if the lote has none at commit time
	AssignOwner(ctx context.Context, id string, owner Owner) Assignment
}
