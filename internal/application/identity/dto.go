package identity

import (
	"time"

	"github.com/lotes/backend/internal/domain/identity"
)

// RegisterInput contains the input for creating a user
type RegisterInput struct {
	UID         string // optional, generated when empty
	Email       string
	Password    string
	Name        string
	DisplayName string
}

// UpdateInput contains the fields to change on a user. Nil fields are left alone.
type UpdateInput struct {
	Name         *string
	DisplayName  *string
	Email        *string
	Password     *string
	Role         *identity.Role // admin only
	TokenBalance *int64         // admin only
}

// LoginInput contains the input for user login
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	TokenType   string
	Actor       *identity.Actor
}
