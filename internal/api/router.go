package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/giftcard/giftcard-api/internal/api/handler"
	"github.com/giftcard/giftcard-api/internal/api/middleware"
	"github.com/giftcard/giftcard-api/internal/api/session"
	"github.com/giftcard/giftcard-api/internal/core/ports"
	"github.com/giftcard/giftcard-api/internal/core/service"
	"github.com/giftcard/giftcard-api/internal/infrastructure/http/handlers"
)

// Dependencies is everything NewRouter needs, built once at startup.
type Dependencies struct {
	AuthService *service.AuthService
	Codec       ports.TokenCodec
	Session     *session.Transport
	Audit       ports.AuditRecorder
	// Probes are pinged by the readiness endpoint, keyed by dependency name.
	Probes map[string]handlers.Pinger
	Logger zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(deps.AuthService, deps.Codec, deps.Session, deps.Audit, deps.Logger)
	authenticate := middleware.Authenticate(deps.Codec, deps.AuthService, deps.Session, deps.Logger)
	optionalAuth := middleware.OptionalAuth(deps.Codec, deps.AuthService, deps.Session, deps.Logger)

	apiGroup := e.Group("/api")

	// --- Auth routes ---
	auth := apiGroup.Group("/auth")
	auth.POST("/register", authHandler.Register, optionalAuth)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout, optionalAuth)
	auth.GET("/me", authHandler.Me, authenticate)
	auth.PUT("/password", authHandler.ChangePassword, authenticate)

	// --- Admin routes ---
	admin := apiGroup.Group("/admin", authenticate, middleware.RequireAdmin())
	admin.GET("/users/:id", authHandler.GetUser)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(deps.Probes)

	apiGroup.GET("/health", healthHandler.Liveness)            // liveness
	apiGroup.GET("/health/ready", healthDepsHandler.Readiness) // readiness

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
