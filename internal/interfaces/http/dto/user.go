package dto

import (
	"time"

	"github.com/lotes/backend/internal/domain/identity"
)

// CreateUserRequest signs up a new member
type CreateUserRequest struct {
	UID         string `json:"uid" binding:"omitempty,segment,max=128"`
	Email       string `json:"email" binding:"required,email,max=200"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	Name        string `json:"name" binding:"omitempty,max=100"`
	DisplayName string `json:"display_name" binding:"omitempty,max=100"`
}

// UpdateUserRequest changes an existing user. Omitted fields are unchanged.
type UpdateUserRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=100"`
	DisplayName  *string `json:"display_name" binding:"omitempty,max=100"`
	Email        *string `json:"email" binding:"omitempty,email,max=200"`
	Password     *string `json:"password" binding:"omitempty,min=8,max=72"`
	Role         *string `json:"role" binding:"omitempty,oneof=member guest admin"`
	TokenBalance *int64  `json:"token_balance" binding:"omitempty,gte=0"`
}

// UserResponse represents an actor in API responses
type UserResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name,omitempty"`
	Role         string   `json:"role"`
	TokenBalance int64    `json:"token_balance"`
	Lotes        []string `json:"lotes"`
}

// LoginRequest exchanges credentials for a token
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
}

// ThumbnailRequest asks for the variants of a stored image
type ThumbnailRequest struct {
	Key string `json:"key" binding:"required,max=1024"`
}

// ThumbnailResponse lists the generated object keys
type ThumbnailResponse struct {
	Keys []string `json:"keys"`
}

// ToUserResponse converts a domain actor
func ToUserResponse(a *identity.Actor) UserResponse {
	return UserResponse{
		ID:           a.ID,
		Name:         a.Name,
		DisplayName:  a.DisplayName,
		Role:         string(a.Role),
		TokenBalance: a.TokenBalance,
		Lotes:        a.OwnedLotes(),
	}
}
