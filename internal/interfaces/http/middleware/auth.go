package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/infrastructure/auth"
	"github.com/lotes/backend/internal/infrastructure/logger"
	"github.com/lotes/backend/internal/interfaces/http/dto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Auth context keys
const (
	SubjectKey    = "auth_subject"
	ActorIDKey    = "actor_id"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// Authenticate resolves the bearer token through verifier and stores the
// subject on the gin context. Requests without a valid token get 401.
func Authenticate(verifier identity.TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, log, auth.ErrInvalidToken)
			return
		}

		subject, err := verifier.Verify(c.Request.Context(), header)
		if err != nil {
			abortUnauthorized(c, log, err)
			return
		}

		c.Set(SubjectKey, subject)
		c.Set(ActorIDKey, subject.ActorID)
		c.Request = c.Request.WithContext(logger.WithActorID(c.Request.Context(), subject.ActorID))

		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			span.SetAttributes(attribute.String("actor.id", subject.ActorID))
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error) {
	code := dto.ErrCodeUnauthorized
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code = "TOKEN_EXPIRED"
	case errors.Is(err, auth.ErrTokenBlacklisted):
		code = "TOKEN_REVOKED"
	}
	log.Debug("Authentication failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(code, "Authentication required"))
}

// GetSubject returns the authenticated subject, if any
func GetSubject(c *gin.Context) (identity.Subject, bool) {
	v, ok := c.Get(SubjectKey)
	if !ok {
		return identity.Subject{}, false
	}
	s, ok := v.(identity.Subject)
	return s, ok
}

// RequireRole allows only subjects whose token carries one of roles.
// It must run after Authenticate.
func RequireRole(roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := GetSubject(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Authentication required"))
			return
		}
		if !slices.Contains(roles, subject.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(dto.ErrCodeForbidden, "Insufficient role"))
			return
		}
		c.Next()
	}
}
