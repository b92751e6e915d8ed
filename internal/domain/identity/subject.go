package identity

import (
	"context"
	"time"
)

// Subject is the identity carried by a verified credential
type Subject struct {
	ActorID  string
	Name     string
	Role     Role
	TokenID  string
	IssuedAt time.Time
}

// TokenVerifier resolves an opaque bearer credential to a subject. Any
// failure means the credential cannot be trusted.
type TokenVerifier interface {
	Verify(ctx context.Context, credential string) (Subject, error)
}

// TokenIssuer signs credentials for an actor
type TokenIssuer interface {
	Issue(a *Actor) (token string, expiresAt time.Time, err error)
}

// TokenRevoker invalidates every credential issued to an actor so far
type TokenRevoker interface {
	RevokeActor(ctx context.Context, actorID string) error
}
