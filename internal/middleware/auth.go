package middleware

import (
	"errors"
	"strconv"
	"time"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/inflnara/inflnara-api/internal/config"
	"github.com/inflnara/inflnara-api/internal/dto"
)

const userLocalsKey = "user"

var ErrNoUser = errors.New("no authenticated user")

// JWTProtected admits requests carrying a valid HS256 access token in the
// Authorization header. The parsed token is stored under c.Locals("user").
//
// Access and refresh tokens share the signing secret and claim set, so a token
// is only accepted as an access token when its lifetime (exp - iat) is within
// the configured access lifetime. Refresh tokens never pass.
func JWTProtected(cfg *config.Config) fiber.Handler {
	unauthorized := func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Unauthorized: invalid or expired token",
		})
	}
	maxLifetime := cfg.JWTAccessExpiry

	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.JWTSecret)},
		ContextKey: userLocalsKey,
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals(userLocalsKey).(*jwt.Token)
			if !ok || !isAccessToken(token, maxLifetime) {
				return unauthorized(c)
			}
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorized(c)
		},
	})
}

func isAccessToken(token *jwt.Token, maxLifetime time.Duration) bool {
	if token == nil || maxLifetime <= 0 {
		return false
	}
	iat, err := token.Claims.GetIssuedAt()
	if err != nil || iat == nil {
		return false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Sub(iat.Time) <= maxLifetime
}

// UserID returns the numeric subject of the access token admitted by JWTProtected.
func UserID(c *fiber.Ctx) (uint, error) {
	token, ok := c.Locals(userLocalsKey).(*jwt.Token)
	if !ok || token == nil {
		return 0, ErrNoUser
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, ErrNoUser
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrNoUser
	}
	return uint(id), nil
}
