package identity

import "context"

// Settlement is the result of charging an actor for an acquired lote.
type Settlement struct {
	Applied bool  // false when the lote had already been settled
	Balance int64 // balance after the settlement
}

// ActorRepository defines persistence for actors
type ActorRepository interface {
	// FindByID returns the actor or shared.ErrNotFound
	FindByID(ctx context.Context, id string) (*Actor, error)

	// Create stores a new actor, failing with shared.ErrAlreadyExists if the id is taken
	Create(ctx context.Context, a *Actor) error

	// Update applies fn to the current actor and stores the result atomically.
	// fn may run more than once when writers race, so it must only modify the
	// actor it is given. An error from fn aborts the update and is returned.
	Update(ctx context.Context, id string, fn func(a *Actor) error) (*Actor, error)

	// Delete removes the actor
	Delete(ctx context.Context, id string) error

	// Settle atomically debits price and records loteID in the collection,
	// once per lote
	Settle(ctx context.Context, actorID, loteID string, price int64) (Settlement, error)
}

// AccountRepository defines persistence for sign-in credentials
type AccountRepository interface {
	// ClaimEmail reserves an email for actorID, failing with
	// shared.ErrAlreadyExists if another actor holds it
	ClaimEmail(ctx context.Context, email, actorID string) error

	// ReleaseEmail frees an email claimed by actorID
	ReleaseEmail(ctx context.Context, email, actorID string) error

	// FindActorIDByEmail resolves a claimed email or returns shared.ErrNotFound
	FindActorIDByEmail(ctx context.Context, email string) (string, error)

	// FindByActorID returns the account or shared.ErrNotFound
	FindByActorID(ctx context.Context, actorID string) (*Account, error)

	// Save creates or replaces an account
	Save(ctx context.Context, a *Account) error

	// Delete removes the account
	Delete(ctx context.Context, actorID string) error
}
