package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/inflnara/inflnara-api/internal/auth"
	"github.com/inflnara/inflnara-api/internal/config"
	"github.com/inflnara/inflnara-api/internal/dto"
	"github.com/inflnara/inflnara-api/internal/metrics"
	"github.com/inflnara/inflnara-api/internal/models"
	"github.com/inflnara/inflnara-api/internal/repository"
	"github.com/inflnara/inflnara-api/internal/throttle"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes; longer passwords are refused outright.
	maxPasswordLength = 72
	maxNameLength     = 100
)

var (
	ErrConflict     = errors.New("email already registered")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")

	ErrInvalidCredentials  = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrInvalidRefreshToken = fmt.Errorf("%w: invalid or expired refresh token", ErrUnauthorized)
)

// Internal refresh failures. mapRefreshError folds all of them into
// ErrInvalidRefreshToken before they leave the service.
var (
	errSessionNotHonoured = errors.New("refresh session revoked, expired or unknown")
	errUserUnavailable    = errors.New("user missing or inactive")
)

type AuthOption func(*AuthService)

func WithThrottle(t throttle.LoginThrottle) AuthOption {
	return func(s *AuthService) {
		if t != nil {
			s.throttle = t
		}
	}
}

func WithMetrics(m *metrics.AuthMetrics) AuthOption {
	return func(s *AuthService) {
		s.metrics = m
	}
}

// AuthService composes the credential store, token authority and session
// ledger into register, login, refresh and logout.
type AuthService struct {
	users         repository.UserRepository
	ledger        *SessionLedger
	tx            repository.Transactor
	tokens        *auth.Authority
	throttle      throttle.LoginThrottle
	metrics       *metrics.AuthMetrics
	bcryptCost    int
	rotateRefresh bool
	dummyHash     []byte
}

// NewAuthService wires the orchestrator. tx must run over the same stores as
// users and ledger; register and rotation write through it.
func NewAuthService(users repository.UserRepository, ledger *SessionLedger, tx repository.Transactor, tokens *auth.Authority, cfg *config.Config, opts ...AuthOption) (*AuthService, error) {
	s := &AuthService{
		users:         users,
		ledger:        ledger,
		tx:            tx,
		tokens:        tokens,
		throttle:      throttle.Noop{},
		bcryptCost:    cfg.BcryptCost,
		rotateRefresh: cfg.RefreshRotation,
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	for _, opt := range opts {
		opt(s)
	}

	// Compared against when the email is unknown so both login failures cost a
	// full bcrypt round.
	dummy, err := bcrypt.GenerateFromPassword([]byte("inflnara:no-such-user"), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest, client ClientMeta) (resp *dto.AuthResponse, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("register", outcome(err), started) }()

	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if err := validateRegistration(email, req.Password, name); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Name:     name,
		Role:     models.RoleUser,
		IsActive: true,
	}
	// The user row and its first session commit together or not at all.
	err = s.tx.Transaction(ctx, func(st repository.Stores) error {
		// The pre-check above can race; the store's unique index has the final say.
		if err := st.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				return ErrConflict
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		issued, err := s.issueSession(ctx, s.ledger.within(st.Sessions), user, client)
		resp = issued
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user registered", "user_id", user.ID, "action", "register")
	return resp, nil
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest, client ClientMeta) (resp *dto.AuthResponse, err error) {
	started := time.Now()
	throttled := false
	defer func() {
		result := outcome(err)
		if throttled {
			result = metrics.ResultThrottled
		}
		s.metrics.Observe("login", result, started)
	}()

	email := normalizeEmail(req.Email)

	allowed, err := s.throttle.Allow(ctx, email)
	if err != nil {
		slog.Warn("login throttle unavailable", "action", "login", "error", err)
	}
	if !allowed {
		throttled = true
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	hash := s.dummyHash
	if user != nil {
		hash = []byte(user.Password)
	}
	matched := bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) == nil

	if user == nil || !matched || !user.IsActive {
		if ferr := s.throttle.Fail(ctx, email); ferr != nil {
			slog.Warn("failed to record login failure", "action", "login", "error", ferr)
		}
		return nil, ErrInvalidCredentials
	}

	if rerr := s.throttle.Reset(ctx, email); rerr != nil {
		slog.Warn("failed to reset login failures", "action", "login", "error", rerr)
	}
	return s.issueSession(ctx, s.ledger, user, client)
}

// Refresh exchanges a refresh token for a new access token. The ledger decides,
// not the signature: a validly signed token whose session was revoked fails.
func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest, client ClientMeta) (resp *dto.RefreshResponse, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("refresh", outcome(err), started) }()

	resp, err = s.refresh(ctx, req.RefreshToken, client)
	if err != nil {
		return nil, mapRefreshError(err)
	}
	return resp, nil
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string, client ClientMeta) (*dto.RefreshResponse, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	valid, err := s.ledger.IsSessionValid(ctx, userID, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to check refresh session: %w", err)
	}
	if !valid {
		return nil, errSessionNotHonoured
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUserUnavailable
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, errUserUnavailable
	}

	access, err := s.tokens.IssueAccessToken(auth.NewClaims(user.ID, user.Email, user.Role))
	if err != nil {
		return nil, err
	}
	resp := &dto.RefreshResponse{AccessToken: access}

	if !s.rotateRefresh {
		return resp, nil
	}

	// Revoking the old session and recording its successor is one unit.
	err = s.tx.Transaction(ctx, func(st repository.Stores) error {
		ledger := s.ledger.within(st.Sessions)
		revoked, err := ledger.Revoke(ctx, userID, refreshToken)
		if err != nil {
			return fmt.Errorf("failed to revoke rotated session: %w", err)
		}
		if !revoked {
			return errSessionNotHonoured
		}
		resp.RefreshToken, err = s.mintRefreshToken(ctx, ledger, user, client)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// mapRefreshError is the single place where token, session and user validity
// failures become ErrInvalidRefreshToken. Store failures pass through as
// internal errors.
func mapRefreshError(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, errSessionNotHonoured),
		errors.Is(err, errUserUnavailable):
		return ErrInvalidRefreshToken
	default:
		return err
	}
}

// Logout revokes every active session of the user. Repeating it is a no-op.
func (s *AuthService) Logout(ctx context.Context, userID uint) (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("logout", outcome(err), started) }()

	n, err := s.ledger.RevokeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	s.metrics.SessionsRevoked(n)
	slog.Info("sessions revoked", "user_id", userID, "action", "logout", "count", n)
	return nil
}

// Sessions lists the user's sessions that could still back a refresh.
func (s *AuthService) Sessions(ctx context.Context, userID uint) ([]dto.SessionResponse, error) {
	rows, err := s.ledger.ActiveSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]dto.SessionResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.SessionResponse{
			ID:        r.ID,
			IPAddress: r.IPAddress,
			UserAgent: r.UserAgent,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
		})
	}
	return out, nil
}

// issueSession mints the token pair. The ledger row is written before the
// pair is returned; tokens never leave without one.
func (s *AuthService) issueSession(ctx context.Context, ledger *SessionLedger, user *models.User, client ClientMeta) (*dto.AuthResponse, error) {
	access, err := s.tokens.IssueAccessToken(auth.NewClaims(user.ID, user.Email, user.Role))
	if err != nil {
		return nil, err
	}
	refresh, err := s.mintRefreshToken(ctx, ledger, user, client)
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         toUserResponse(user),
	}, nil
}

func (s *AuthService) mintRefreshToken(ctx context.Context, ledger *SessionLedger, user *models.User, client ClientMeta) (string, error) {
	token, expiresAt, err := s.tokens.IssueRefreshToken(auth.NewClaims(user.ID, user.Email, user.Role))
	if err != nil {
		return "", err
	}
	if err := ledger.RecordSession(ctx, user.ID, token, expiresAt, client); err != nil {
		return "", fmt.Errorf("failed to record refresh session: %w", err)
	}
	return token, nil
}

func toUserResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateRegistration(email, password, name string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordLength)
	}
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: name is required (max %d characters)", ErrValidation, maxNameLength)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrConflict):
		return metrics.ResultConflict
	case errors.Is(err, ErrValidation):
		return metrics.ResultInvalid
	case errors.Is(err, ErrUnauthorized):
		return metrics.ResultUnauthorized
	default:
		return metrics.ResultError
	}
}
