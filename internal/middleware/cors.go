package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/inflnara/inflnara-api/internal/config"
)

func CORS(cfg *config.Config) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept",
		AllowMethods:     "GET, POST, PATCH, OPTIONS",
		AllowCredentials: false,
	})
}

// The API serves JSON only, so the content policy allows nothing to load.
const contentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Set("Content-Security-Policy", contentSecurityPolicy)
		// HSTS only when the client reached us over TLS, directly or via a proxy.
		if c.Protocol() == "https" || c.Get(fiber.HeaderXForwardedProto) == "https" {
			c.Set(fiber.HeaderStrictTransportSecurity, "max-age=31536000; includeSubDomains; preload")
		}
		return c.Next()
	}
}
