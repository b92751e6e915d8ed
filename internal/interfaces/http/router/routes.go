package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/infrastructure/config"
	"github.com/lotes/backend/internal/infrastructure/logger"
	"github.com/lotes/backend/internal/interfaces/http/handler"
	"github.com/lotes/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers served by the API
type Handlers struct {
	Lotes      *handler.LoteHandler
	Users      *handler.UserHandler
	Auth       *handler.AuthHandler
	Thumbnails *handler.ThumbnailHandler
	Health     *handler.HealthHandler
}

// Dependencies holds everything NewEngine needs
type Dependencies struct {
	Handlers    Handlers
	Verifier    identity.TokenVerifier
	Logger      *zap.Logger
	HTTP        config.HTTPConfig
	ServiceName string
	// Meter enables HTTP metrics when non-nil
	Meter metric.Meter
	// RateLimiter is applied to every API route when non-nil
	RateLimiter *middleware.RateLimiter
}

// NewEngine builds the gin engine with the middleware chain and all routes
func NewEngine(deps Dependencies) (*gin.Engine, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(deps.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	metrics, err := middleware.HTTPMetrics(deps.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = deps.HTTP.CORSAllowOrigins
	if len(deps.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = deps.HTTP.CORSAllowMethods
	}
	if len(deps.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = deps.HTTP.CORSAllowHeaders
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(deps.ServiceName),
		middleware.SpanEnricher(),
		logger.GinMiddleware(log),
		metrics,
		middleware.CORS(cors),
	)
	if deps.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(deps.HTTP.MaxBodySize))
	}

	r := NewRouter(engine, WithAPIVersion("v1"))
	for _, g := range apiGroups(deps, log) {
		r.Register(g)
		log.Debug("Routes mounted",
			zap.String("group", g.Name()),
			zap.String("base_path", r.BasePath()),
			zap.Strings("routes", g.Routes()),
		)
	}
	r.Setup()
	return engine, nil
}

func apiGroups(deps Dependencies, log *zap.Logger) []*DomainGroup {
	h := deps.Handlers
	authenticated := middleware.Authenticate(deps.Verifier, log)

	// Root group with an empty prefix so that rate limiting covers every route.
	root := NewDomainGroup("api", "")
	if deps.RateLimiter != nil {
		root.Use(middleware.RateLimit(deps.RateLimiter))
	}

	if h.Health != nil {
		root.GET("/health", h.Health.Health)
	}

	if h.Lotes != nil {
		// Acquisition verifies the credential itself after validating the
		// lote id, so it is not behind Authenticate.
		root.GET("/acquireLote", h.Lotes.AcquireByQuery)

		lotes := root.Group("lotes", "/lotes")
		lotes.GET("", h.Lotes.List)
		lotes.GET("/:loteId", h.Lotes.Get)
		lotes.POST("/:loteId/acquire", h.Lotes.Acquire)
		lotes.PUT("/:loteId", authenticated, middleware.RequireRole(identity.RoleAdmin), h.Lotes.Put)
	}

	if h.Users != nil {
		users := root.Group("users", "/users")
		users.POST("", h.Users.Create)
		users.GET("/:uid", authenticated, h.Users.Get)
		users.PATCH("/:uid", authenticated, h.Users.Update)
		users.DELETE("/:uid", authenticated, h.Users.Delete)
	}

	if h.Auth != nil {
		root.Group("auth", "/auth").POST("/login", h.Auth.Login)
	}

	if h.Thumbnails != nil {
		root.Group("thumbnails", "/thumbnails").
			Use(authenticated).
			POST("", h.Thumbnails.Generate)
	}

	return []*DomainGroup{root}
}
