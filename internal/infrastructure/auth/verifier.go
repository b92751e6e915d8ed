package auth

import (
	"context"
	"strings"

	"github.com/lotes/backend/internal/domain/identity"
	"go.uber.org/zap"
)

// Verifier resolves bearer credentials by validating the JWT and consulting
// the blacklist. It implements identity.TokenVerifier and identity.TokenRevoker.
type Verifier struct {
	jwt       *JWTService
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewVerifier creates a new verifier. A nil blacklist disables revocation checks.
func NewVerifier(jwtService *JWTService, blacklist TokenBlacklist, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{jwt: jwtService, blacklist: blacklist, logger: logger}
}

// Verify validates a credential. A "Bearer " prefix is accepted and stripped.
func (v *Verifier) Verify(ctx context.Context, credential string) (identity.Subject, error) {
	token := strings.TrimSpace(credential)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return identity.Subject{}, ErrInvalidToken
	}

	claims, err := v.jwt.ValidateAccessToken(token)
	if err != nil {
		return identity.Subject{}, err
	}
	subject := claims.ToSubject()

	if v.blacklist == nil {
		return subject, nil
	}

	if subject.TokenID != "" {
		revoked, err := v.blacklist.IsBlacklisted(ctx, subject.TokenID)
		if err != nil {
			return identity.Subject{}, err
		}
		if revoked {
			return identity.Subject{}, ErrTokenBlacklisted
		}
	}

	invalidated, err := v.blacklist.IsUserTokenInvalidated(ctx, subject.ActorID, subject.IssuedAt)
	if err != nil {
		return identity.Subject{}, err
	}
	if invalidated {
		v.logger.Debug("Rejected token issued before user invalidation",
			zap.String("actor_id", subject.ActorID),
			zap.String("jti", subject.TokenID))
		return identity.Subject{}, ErrTokenBlacklisted
	}

	return subject, nil
}

// RevokeActor invalidates every token issued to the actor so far
func (v *Verifier) RevokeActor(ctx context.Context, actorID string) error {
	if v.blacklist == nil {
		return nil
	}
	return v.blacklist.AddUserTokensToBlacklist(ctx, actorID, v.jwt.Expiration())
}

var (
	_ identity.TokenVerifier = (*Verifier)(nil)
	_ identity.TokenRevoker  = (*Verifier)(nil)
)
