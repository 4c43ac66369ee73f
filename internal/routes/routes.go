package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/inflnara/inflnara-api/internal/config"
	"github.com/inflnara/inflnara-api/internal/handlers"
	"github.com/inflnara/inflnara-api/internal/middleware"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	Users   *handlers.UserHandler
	Health  *handlers.HealthHandler
	Metrics http.Handler
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers) {
	if h.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.Metrics))
	}

	api := app.Group("/api")

	// General API rate limit per IP
	api.Use(perIPLimiter(cfg.RateLimitAPI))

	api.Get("/health", h.Health.Check)

	// Stricter limit on the public auth endpoints
	authLimit := perIPLimiter(cfg.RateLimitAuth)
	auth := api.Group("/auth")
	auth.Post("/register", authLimit, h.Auth.Register)
	auth.Post("/login", authLimit, h.Auth.Login)
	auth.Post("/refresh", authLimit, h.Auth.Refresh)

	// Protected routes; JWT middleware is applied per route so public routes stay open
	protected := middleware.JWTProtected(cfg)
	auth.Post("/logout", protected, h.Auth.Logout)
	auth.Get("/sessions", protected, h.Auth.Sessions)
	api.Get("/users/me", protected, h.Users.Me)
	api.Patch("/users/me", protected, h.Users.UpdateMe)
}

func perIPLimiter(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}
