package identity

import (
	"context"

	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/domain/shared"
	"go.uber.org/zap"
)

var errInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")

// AuthService handles sign-in
type AuthService struct {
	actors   identity.ActorRepository
	accounts identity.AccountRepository
	issuer   identity.TokenIssuer
	logger   *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	actors identity.ActorRepository,
	accounts identity.AccountRepository,
	issuer identity.TokenIssuer,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		actors:   actors,
		accounts: accounts,
		issuer:   issuer,
		logger:   logger,
	}
}

// Login checks the password and returns a bearer token
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	uid, err := s.accounts.FindActorIDByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Warn("Login for unknown email")
		return nil, errInvalidCredentials
	}

	account, err := s.accounts.FindByActorID(ctx, uid)
	if err != nil {
		s.logger.Warn("Email claim without account", zap.String("actor_id", uid), zap.Error(err))
		return nil, errInvalidCredentials
	}
	if !account.VerifyPassword(input.Password) {
		s.logger.Warn("Invalid password attempt", zap.String("actor_id", uid))
		return nil, errInvalidCredentials
	}

	actor, err := s.actors.FindByID(ctx, uid)
	if err != nil {
		s.logger.Error("Account without actor", zap.String("actor_id", uid), zap.Error(err))
		return nil, errInvalidCredentials
	}

	token, expiresAt, err := s.issuer.Issue(actor)
	if err != nil {
		s.logger.Error("Failed to issue token", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to issue token")
	}

	s.logger.Info("User logged in", zap.String("actor_id", uid))
	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		TokenType:   "Bearer",
		Actor:       actor,
	}, nil
}
