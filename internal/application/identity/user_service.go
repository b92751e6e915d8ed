// Package identity provisions users: sign-up, profile changes, removal and
// sign-in.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lotes/backend/internal/domain/directory"
	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// UserServiceConfig contains configuration for the user service
type UserServiceConfig struct {
	InitialTokens int64
}

// UserService manages actors and their accounts
type UserService struct {
	actors   identity.ActorRepository
	accounts identity.AccountRepository
	revoker  identity.TokenRevoker
	config   UserServiceConfig
	logger   *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	actors identity.ActorRepository,
	accounts identity.AccountRepository,
	revoker identity.TokenRevoker,
	config UserServiceConfig,
	logger *zap.Logger,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		actors:   actors,
		accounts: accounts,
		revoker:  revoker,
		config:   config,
		logger:   logger,
	}
}

// Register creates an actor with member role, its account and its email claim
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*identity.Actor, error) {
	uid := strings.TrimSpace(input.UID)
	if uid == "" {
		uid = uuid.New().String()
	}
	if !directory.ValidSegment(uid) {
		return nil, shared.ErrInvalidInput.WithMessage("invalid uid")
	}

	account, err := identity.NewAccount(uid, input.Email, input.Password)
	if err != nil {
		return nil, err
	}

	name := input.Name
	if strings.TrimSpace(name) == "" {
		name, _, _ = strings.Cut(account.Email, "@")
	}
	actor, err := identity.NewActor(uid, name, input.DisplayName, s.config.InitialTokens)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.ClaimEmail(ctx, account.Email, uid); err != nil {
		return nil, err
	}
	if err := s.actors.Create(ctx, actor); err != nil {
		s.releaseEmail(ctx, account.Email, uid)
		return nil, err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		if delErr := s.actors.Delete(ctx, uid); delErr != nil {
			s.logger.Error("Failed to remove actor after account write failure",
				zap.String("actor_id", uid), zap.Error(delErr))
		}
		s.releaseEmail(ctx, account.Email, uid)
		return nil, err
	}

	s.logger.Info("User registered", zap.String("actor_id", uid))
	return actor, nil
}

// Get returns an actor. Callers may read themselves; admins may read anyone.
func (s *UserService) Get(ctx context.Context, uid string, caller identity.Subject) (*identity.Actor, error) {
	if err := s.authorize(ctx, uid, caller, false); err != nil {
		return nil, err
	}
	return s.actors.FindByID(ctx, uid)
}

// Update changes an actor. Role and balance changes require an admin caller.
func (s *UserService) Update(ctx context.Context, uid string, input UpdateInput, caller identity.Subject) (*identity.Actor, error) {
	privileged := input.Role != nil || input.TokenBalance != nil
	if err := s.authorize(ctx, uid, caller, privileged); err != nil {
		return nil, err
	}

	if input.Email != nil || input.Password != nil {
		if err := s.updateCredentials(ctx, uid, input.Email, input.Password); err != nil {
			return nil, err
		}
	}

	actor, err := s.actors.Update(ctx, uid, func(a *identity.Actor) error {
		if input.Name != nil || input.DisplayName != nil {
			name, displayName := a.Name, a.DisplayName
			if input.Name != nil {
				name = *input.Name
			}
			if input.DisplayName != nil {
				displayName = *input.DisplayName
			}
			if err := a.Rename(name, displayName); err != nil {
				return err
			}
		}
		if input.Role != nil {
			if err := a.SetRole(*input.Role); err != nil {
				return err
			}
		}
		if input.TokenBalance != nil {
			if err := a.SetBalance(*input.TokenBalance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User updated",
		zap.String("actor_id", uid),
		zap.String("caller_id", caller.ActorID),
		zap.Bool("privileged", privileged))
	return actor, nil
}

func (s *UserService) updateCredentials(ctx context.Context, uid string, email, password *string) error {
	account, err := s.accounts.FindByActorID(ctx, uid)
	if err != nil {
		return err
	}
	previous := account.Email

	if password != nil {
		if err := account.SetPassword(*password); err != nil {
			return err
		}
	}
	changedEmail := email != nil && !identity.SameEmail(*email, previous)
	if email != nil {
		if err := account.SetEmail(*email); err != nil {
			return err
		}
	}
	if changedEmail {
		if err := s.accounts.ClaimEmail(ctx, account.Email, uid); err != nil {
			return err
		}
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		if changedEmail {
			s.releaseEmail(ctx, account.Email, uid)
		}
		return err
	}
	if changedEmail {
		s.releaseEmail(ctx, previous, uid)
	}
	return nil
}

// Delete removes an actor, its account and email claim, and revokes its
// tokens. Lotes it owns keep their owner record.
func (s *UserService) Delete(ctx context.Context, uid string, caller identity.Subject) error {
	if err := s.authorize(ctx, uid, caller, false); err != nil {
		return err
	}
	if _, err := s.actors.FindByID(ctx, uid); err != nil {
		return err
	}

	account, err := s.accounts.FindByActorID(ctx, uid)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	if err := s.actors.Delete(ctx, uid); err != nil {
		return err
	}
	if account != nil {
		if err := s.accounts.Delete(ctx, uid); err != nil {
			s.logger.Error("Failed to delete account", zap.String("actor_id", uid), zap.Error(err))
		}
		s.releaseEmail(ctx, account.Email, uid)
	}
	if s.revoker != nil {
		if err := s.revoker.RevokeActor(ctx, uid); err != nil {
			s.logger.Error("Failed to revoke tokens of deleted user", zap.String("actor_id", uid), zap.Error(err))
		}
	}

	s.logger.Info("User deleted", zap.String("actor_id", uid), zap.String("caller_id", caller.ActorID))
	return nil
}

// BootstrapAdmin makes sure an admin account exists for email. An existing
// account is promoted; otherwise one is registered.
func (s *UserService) BootstrapAdmin(ctx context.Context, email, password string) (*identity.Actor, error) {
	if strings.TrimSpace(email) == "" {
		return nil, nil
	}

	uid, err := s.accounts.FindActorIDByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		actor, regErr := s.Register(ctx, RegisterInput{Email: email, Password: password, Name: "admin"})
		if regErr != nil {
			return nil, regErr
		}
		uid = actor.ID
	} else if err != nil {
		return nil, err
	}

	actor, err := s.actors.Update(ctx, uid, func(a *identity.Actor) error {
		return a.SetRole(identity.RoleAdmin)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Bootstrap admin ready", zap.String("actor_id", uid))
	return actor, nil
}

// authorize allows callers to act on themselves and admins to act on anyone.
// The caller's role is read from the directory, not from the token.
func (s *UserService) authorize(ctx context.Context, uid string, caller identity.Subject, adminOnly bool) error {
	if caller.ActorID == "" {
		return shared.ErrUnauthorized
	}
	if caller.ActorID == uid && !adminOnly {
		return nil
	}
	self, err := s.actors.FindByID(ctx, caller.ActorID)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if self.Role != identity.RoleAdmin {
		return shared.ErrForbidden
	}
	return nil
}

func (s *UserService) releaseEmail(ctx context.Context, email, uid string) {
	if err := s.accounts.ReleaseEmail(ctx, email, uid); err != nil {
		s.logger.Error("Failed to release email claim", zap.String("actor_id", uid), zap.Error(err))
	}
}
