package lote

import (
	"time"

	"github.com/lotes/backend/internal/domain/directory"
	"github.com/lotes/backend/internal/domain/shared"
)

// Lote is a finite resource that can be owned by at most one actor.
type Lote struct {
	ID    string `json:"id"`
	Price int64  `json:"price"`
	Owner *Owner `json:"owner,omitempty"`
}

// Owner records who acquired a lote and when. It is written once and never
// changed afterwards.
type Owner struct {
	ActorID     string `json:"actor_id"`
	DisplayName string `json:"display_name"`
	// AcquiredAt is a Unix timestamp in milliseconds.
	AcquiredAt int64 `json:"acquisition_timestamp"`
}

// NewLote creates an unowned lote.
func NewLote(id string, price int64) (*Lote, error) {
	if !ValidID(id) {
		return nil, shared.ErrInvalidInput.WithMessage("lote id must be a single path segment")
	}
	if price < 0 {
		return nil, shared.ErrInvalidInput.WithMessage("price cannot be negative")
	}
	return &Lote{ID: id, Price: price}, nil
}

// NewOwner builds the owner record for an acquisition at the given instant.
func NewOwner(actorID, displayName string, at time.Time) Owner {
	return Owner{
		ActorID:     actorID,
		DisplayName: displayName,
		AcquiredAt:  at.UnixMilli(),
	}
}

// IsOwned reports whether the lote already has an owner.
func (l *Lote) IsOwned() bool {
	return l.Owner != nil
}

// AffordableWith reports whether a balance covers the price.
func (l *Lote) AffordableWith(balance int64) bool {
	return l.Price <= balance
}

// ValidID reports whether id is usable as a lote id.
func ValidID(id string) bool {
	return directory.ValidSegment(id)
}

// AcquiredTime returns the acquisition instant.
func (o Owner) AcquiredTime() time.Time {
	return time.UnixMilli(o.AcquiredAt)
}
