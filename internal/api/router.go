package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"github.com/sociallab/sociallab/internal/api/handler"
	"github.com/sociallab/sociallab/internal/api/middleware"
	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
	"github.com/sociallab/sociallab/internal/core/service"
	"github.com/sociallab/sociallab/internal/infrastructure/http/handlers"
)

// Deps carries everything the HTTP surface needs. It is assembled in main.
type Deps struct {
	Auth           ports.AuthContext
	Profiles       ports.ProfileService
	Files          ports.FileStorage
	Notifications  interface{ Drain() []domain.Notification }
	HealthChecks   map[string]handlers.Check
	AuthRateLimit  float64
	MaxAvatarBytes int64
	Log            zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(middleware.ProvideAuth(deps.Auth))

	// --- Health probes and metrics (no auth required) ---
	e.GET("/health", handlers.NewHealthHandler().Liveness)
	e.GET("/health/ready", handlers.NewReadinessHandler(deps.HealthChecks).Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler()
	limited := authRateLimiter(deps.AuthRateLimit)

	e.GET("/auth/state", authHandler.State)
	e.GET(domain.CallbackPath, authHandler.Callback)
	e.DELETE("/auth/error", authHandler.ClearError)
	e.POST("/auth/sign-in", authHandler.SignIn, limited)
	e.POST("/auth/sign-up", authHandler.SignUp, limited)
	e.POST("/auth/google", authHandler.Google, limited)
	e.POST("/auth/sign-out", authHandler.SignOut)

	e.GET("/notifications", handler.NewNotificationHandler(deps.Notifications).List)
	e.GET("/media/:bucket/*", handler.NewMediaHandler(deps.Files).Get)

	// --- Guarded routes ---
	// Attached per route: a group with an empty prefix would also guard unknown paths.
	guard := middleware.RequireAuth(service.SignInPath)

	e.GET(service.LandingPath, authHandler.Dashboard, guard)

	profileHandler := handler.NewProfileHandler(deps.Profiles, deps.MaxAvatarBytes)
	e.GET("/profile", profileHandler.Get, guard)
	e.PUT("/profile", profileHandler.Update, guard)
	e.POST("/profile/avatar", profileHandler.UploadAvatar, guard)
	e.POST("/profile/refresh", profileHandler.Refresh, guard)

	return e
}

// requestLogger writes one access log line per request through zerolog.
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
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
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

// authRateLimiter throttles credential-bearing auth routes per client IP.
func authRateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = 5
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     int(perSecond) * 2,
		ExpiresIn: 3 * time.Minute,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			c.Response().Header().Set("Retry-After", "1")
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
	})
}
