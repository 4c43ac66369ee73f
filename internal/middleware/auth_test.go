package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inflnara/inflnara-api/internal/auth"
	"github.com/inflnara/inflnara-api/internal/config"
)

func newProtectedApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Get("/whoami", JWTProtected(cfg), func(c *fiber.Ctx) error {
		id, err := UserID(c)
		if err != nil {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.JSON(fiber.Map{"id": id})
	})
	return app
}

func call(t *testing.T, app *fiber.App, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestJWTProtected(t *testing.T) {
	cfg := &config.Config{JWTSecret: "mw-secret", JWTAccessExpiry: time.Minute}
	app := newProtectedApp(cfg)

	tokens, err := auth.NewAuthority([]byte(cfg.JWTSecret), time.Minute, time.Hour)
	require.NoError(t, err)
	good, err := tokens.IssueAccessToken(auth.NewClaims(17, "a@example.com", "user"))
	require.NoError(t, err)

	status, body := call(t, app, good)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"id":17}`, body)

	status, _ = call(t, app, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	other, err := auth.NewAuthority([]byte("other-secret"), time.Minute, time.Hour)
	require.NoError(t, err)
	forged, err := other.IssueAccessToken(auth.NewClaims(17, "a@example.com", "user"))
	require.NoError(t, err)
	status, _ = call(t, app, forged)
	assert.Equal(t, http.StatusUnauthorized, status)

	past, err := auth.NewAuthority([]byte(cfg.JWTSecret), time.Minute, time.Hour,
		auth.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	require.NoError(t, err)
	expired, err := past.IssueAccessToken(auth.NewClaims(17, "a@example.com", "user"))
	require.NoError(t, err)
	status, _ = call(t, app, expired)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestJWTProtected_RejectsRefreshTokens(t *testing.T) {
	cfg := &config.Config{JWTSecret: "mw-secret", JWTAccessExpiry: 15 * time.Minute}
	app := newProtectedApp(cfg)

	tokens, err := auth.NewAuthority([]byte(cfg.JWTSecret), cfg.JWTAccessExpiry, 30*24*time.Hour)
	require.NoError(t, err)
	refresh, _, err := tokens.IssueRefreshToken(auth.NewClaims(17, "a@example.com", "user"))
	require.NoError(t, err)

	status, body := call(t, app, refresh)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "Unauthorized")
}

func TestJWTProtected_RequiresIssuedAt(t *testing.T) {
	cfg := &config.Config{JWTSecret: "mw-secret", JWTAccessExpiry: time.Minute}
	app := newProtectedApp(cfg)

	noIat, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "17",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	status, _ := call(t, app, noIat)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSecurityHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(SecurityHeaders())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", resp.Header.Get("Referrer-Policy"))
	assert.Equal(t, "geolocation=(), microphone=(), camera=()", resp.Header.Get("Permissions-Policy"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"), "plain http gets no HSTS")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Strict-Transport-Security"), "max-age=31536000")
}

func TestUserID_WithoutToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		_, err := UserID(c)
		assert.ErrorIs(t, err, ErrNoUser)
		return c.SendStatus(fiber.StatusNoContent)
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
