package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "test-issuer",
	})
}

func testActor() *identity.Actor {
	return &identity.Actor{ID: "u1", Name: "ana", Role: identity.RoleMember}
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestJWTService()

	token, expiresAt, err := svc.Issue(testActor())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.ActorID)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "member", claims.Role)
	assert.NotEmpty(t, claims.ID)

	subject := claims.ToSubject()
	assert.Equal(t, identity.Subject{
		ActorID:  "u1",
		Name:     "ana",
		Role:     identity.RoleMember,
		TokenID:  claims.ID,
		IssuedAt: claims.IssuedAt.Time,
	}, subject)
}

func TestValidateAccessToken_Failures(t *testing.T) {
	svc := newTestJWTService()

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateAccessToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{
			Secret:                "another-secret-key-of-32-chars!!",
			AccessTokenExpiration: time.Minute,
			Issuer:                "test-issuer",
		})
		token, _, err := other.Issue(testActor())
		require.NoError(t, err)
		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{
			Secret:                "test-secret-key-at-least-32-chars",
			AccessTokenExpiration: time.Minute,
			Issuer:                "someone-else",
		})
		token, _, err := other.Issue(testActor())
		require.NoError(t, err)
		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		past := newTestJWTService()
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := past.Issue(testActor())
		require.NoError(t, err)
		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{ActorID: "u1"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing actor", func(t *testing.T) {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
		require.NoError(t, err)
		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrMissingActorID)
	})
}

func TestVerifier(t *testing.T) {
	ctx := context.Background()
	svc := newTestJWTService()
	blacklist := NewInMemoryTokenBlacklist()
	verifier := NewVerifier(svc, blacklist, nil)

	token, _, err := svc.Issue(testActor())
	require.NoError(t, err)

	t.Run("plain and bearer credentials", func(t *testing.T) {
		subject, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "u1", subject.ActorID)

		subject, err = verifier.Verify(ctx, "Bearer "+token)
		require.NoError(t, err)
		assert.Equal(t, identity.RoleMember, subject.Role)
	})

	t.Run("empty credential", func(t *testing.T) {
		_, err := verifier.Verify(ctx, "  ")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("revoked jti", func(t *testing.T) {
		other, _, err := svc.Issue(&identity.Actor{ID: "u2", Role: identity.RoleMember})
		require.NoError(t, err)
		claims, err := svc.ValidateAccessToken(other)
		require.NoError(t, err)
		require.NoError(t, blacklist.AddToBlacklist(ctx, claims.ID, time.Hour))

		_, err = verifier.Verify(ctx, other)
		assert.ErrorIs(t, err, ErrTokenBlacklisted)
	})

	t.Run("revoked actor", func(t *testing.T) {
		require.NoError(t, verifier.RevokeActor(ctx, "u1"))
		_, err := verifier.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrTokenBlacklisted)
	})
}
