package identity

import (
	"sort"
	"strings"

	"github.com/lotes/backend/internal/domain/shared"
)

// Role determines what an actor may do
type Role string

const (
	RoleMember Role = "member" // may acquire lotes
	RoleGuest  Role = "guest"  // read-only
	RoleAdmin  Role = "admin"  // manages lotes and users
)

// IsValid reports whether the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleMember, RoleGuest, RoleAdmin:
		return true
	}
	return false
}

// Actor is an authenticated principal with a token balance and a collection
// of owned lotes.
type Actor struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	DisplayName  string          `json:"display_name,omitempty"`
	Role         Role            `json:"role"`
	TokenBalance int64           `json:"token_balance"`
	Lotes        map[string]bool `json:"lotes,omitempty"`
}

// NewActor creates a member actor with an initial balance
func NewActor(id, name, displayName string, initialTokens int64) (*Actor, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.ErrInvalidInput.WithMessage("actor id cannot be empty")
	}
	if initialTokens < 0 {
		return nil, shared.ErrInvalidInput.WithMessage("token balance cannot be negative")
	}
	a := &Actor{
		ID:           id,
		Role:         RoleMember,
		TokenBalance: initialTokens,
	}
	if err := a.Rename(name, displayName); err != nil {
		return nil, err
	}
	return a, nil
}

// PublicName is the name shown on owner records. It falls back to Name when
// no display name is set.
func (a *Actor) PublicName() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Name
}

// CanAcquire reports whether the actor's role allows acquisitions
func (a *Actor) CanAcquire() bool {
	return a.Role == RoleMember
}

// Owns reports whether the lote is in the actor's collection
func (a *Actor) Owns(loteID string) bool {
	return a.Lotes[loteID]
}

// OwnedLotes returns the ids of the settled lotes in order
func (a *Actor) OwnedLotes() []string {
	ids := make([]string, 0, len(a.Lotes))
	for id, owned := range a.Lotes {
		if owned {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Rename sets name and display name
func (a *Actor) Rename(name, displayName string) error {
	name = strings.TrimSpace(name)
	displayName = strings.TrimSpace(displayName)
	if len(name) > 200 || len(displayName) > 200 {
		return shared.ErrInvalidInput.WithMessage("names cannot exceed 200 characters")
	}
	a.Name = name
	a.DisplayName = displayName
	return nil
}

// SetRole changes the actor's role
func (a *Actor) SetRole(role Role) error {
	if !role.IsValid() {
		return shared.ErrInvalidInput.WithMessage("unknown role: " + string(role))
	}
	a.Role = role
	return nil
}

// SetBalance overwrites the token balance
func (a *Actor) SetBalance(balance int64) error {
	if balance < 0 {
		return shared.ErrInvalidInput.WithMessage("token balance cannot be negative")
	}
	a.TokenBalance = balance
	return nil
}

// Settle charges price for loteID and records it in the collection. It is a
// no-op returning false when the lote is already recorded, which makes
// repeated settlements of the same acquisition harmless.
func (a *Actor) Settle(loteID string, price int64) bool {
	if a.Owns(loteID) {
		return false
	}
	if a.Lotes == nil {
		a.Lotes = make(map[string]bool)
	}
	a.TokenBalance -= price
	a.Lotes[loteID] = true
	return true
}
