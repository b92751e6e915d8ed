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

const (
	accountsCollection = "accounts"
	emailsCollection   = "emails"
)

type emailClaim struct {
	ActorID string `json:"actor_id"`
}

// AccountRepository implements identity.AccountRepository on the directory store
type AccountRepository struct {
	store directory.Store
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(store directory.Store) *AccountRepository {
	return &AccountRepository{store: store}
}

func emailPath(email string) string {
	return directory.Join(emailsCollection, identity.EmailKey(email))
}

func claimHolder(data []byte) string {
	var c emailClaim
	if err := json.Unmarshal(data, &c); err != nil {
		return ""
	}
	return c.ActorID
}

// ClaimEmail reserves email for actorID. Claiming an email the actor already
// holds succeeds.
func (r *AccountRepository) ClaimEmail(ctx context.Context, email, actorID string) error {
	data, err := json.Marshal(emailClaim{ActorID: actorID})
	if err != nil {
		return err
	}
	result := directory.ConditionalWrite(ctx, r.store, emailPath(email), func(current []byte) ([]byte, bool) {
		if current != nil && claimHolder(current) != actorID {
			return nil, false
		}
		return data, true
	})
	switch result.Outcome {
	case directory.Committed:
		return nil
	case directory.Conflict:
		return shared.ErrAlreadyExists.WithMessage("email is already registered")
	default:
		return result.Err
	}
}

// ReleaseEmail removes the claim if actorID holds it
func (r *AccountRepository) ReleaseEmail(ctx context.Context, email, actorID string) error {
	result := directory.ConditionalWrite(ctx, r.store, emailPath(email), func(current []byte) ([]byte, bool) {
		if current == nil || claimHolder(current) != actorID {
			return nil, false
		}
		return nil, true
	})
	if result.Outcome == directory.Failed {
		return result.Err
	}
	return nil
}

// FindActorIDByEmail resolves a claimed email
func (r *AccountRepository) FindActorIDByEmail(ctx context.Context, email string) (string, error) {
	data, err := r.store.Get(ctx, emailPath(email))
	if errors.Is(err, directory.ErrNotFound) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	id := claimHolder(data)
	if id == "" {
		return "", fmt.Errorf("%w: email claim without actor", ErrMalformedDocument)
	}
	return id, nil
}

// FindByActorID finds the account of an actor
func (r *AccountRepository) FindByActorID(ctx context.Context, actorID string) (*identity.Account, error) {
	data, err := r.store.Get(ctx, directory.Join(accountsCollection, actorID))
	if errors.Is(err, directory.ErrNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var a identity.Account
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: account %s: %v", ErrMalformedDocument, actorID, err)
	}
	a.ActorID = actorID
	return &a, nil
}

// Save creates or replaces an account
func (r *AccountRepository) Save(ctx context.Context, a *identity.Account) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, directory.Join(accountsCollection, a.ActorID), data)
}

// Delete removes an account
func (r *AccountRepository) Delete(ctx context.Context, actorID string) error {
	return r.store.Delete(ctx, directory.Join(accountsCollection, actorID))
}
