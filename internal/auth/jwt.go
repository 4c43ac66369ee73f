// Package auth is the token authority: it mints and verifies the signed access
// and refresh tokens. It holds no state besides the injected signing secret and
// lifetimes; persistence of refresh tokens is the session ledger's job.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure: bad signature, malformed
// input, wrong algorithm or expiry. Callers cannot tell them apart.
var ErrInvalidToken = errors.New("invalid token")

var errEmptySecret = errors.New("signing secret must not be empty")

// Claims is the wire payload: subject id, email and role, plus the registered
// iat/exp timestamps set while signing.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// NewClaims builds the identity part of a token payload.
func NewClaims(userID uint, email, role string) Claims {
	return Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: strconv.FormatUint(uint64(userID), 10),
		},
	}
}

// UserID parses the subject back into the numeric identity id.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

type Option func(*Authority)

// WithClock replaces time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		a.now = now
	}
}

type Authority struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

func NewAuthority(secret []byte, accessTTL, refreshTTL time.Duration, opts ...Option) (*Authority, error) {
	if len(secret) == 0 {
		return nil, errEmptySecret
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive (access=%s, refresh=%s)", accessTTL, refreshTTL)
	}
	if refreshTTL <= accessTTL {
		return nil, fmt.Errorf("refresh lifetime must exceed access lifetime (access=%s, refresh=%s)", accessTTL, refreshTTL)
	}

	a := &Authority{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	return a, nil
}

func (a *Authority) AccessTTL() time.Duration  { return a.accessTTL }
func (a *Authority) RefreshTTL() time.Duration { return a.refreshTTL }

// IssueAccessToken signs a short-lived token for claims.
func (a *Authority) IssueAccessToken(claims Claims) (string, error) {
	token, _, err := a.sign(claims, a.accessTTL)
	return token, err
}

// IssueRefreshToken signs a long-lived token and returns its embedded expiry so
// the ledger row matches the token exactly.
func (a *Authority) IssueRefreshToken(claims Claims) (string, time.Time, error) {
	return a.sign(claims, a.refreshTTL)
}

func (a *Authority) sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := a.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// Verify checks signature and expiry and returns the embedded claims.
func (a *Authority) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
