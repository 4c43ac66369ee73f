package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/inflnara/inflnara-api/internal/models"
	"github.com/inflnara/inflnara-api/internal/repository"
)

// ClientMeta is the optional request metadata stored with a session.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// SessionLedger is the authority on which refresh tokens may still be used.
// A session is honoured iff it is not revoked and has not expired; expiry is
// evaluated at read time, never written.
type SessionLedger struct {
	sessions repository.SessionRepository
	now      func() time.Time
}

func NewSessionLedger(sessions repository.SessionRepository, now func() time.Time) *SessionLedger {
	if now == nil {
		now = time.Now
	}
	return &SessionLedger{sessions: sessions, now: now}
}

// within returns a ledger on the same clock that writes through sessions,
// typically repositories bound to a transaction.
func (l *SessionLedger) within(sessions repository.SessionRepository) *SessionLedger {
	return &SessionLedger{sessions: sessions, now: l.now}
}

func (l *SessionLedger) RecordSession(ctx context.Context, userID uint, refreshToken string, expiresAt time.Time, client ClientMeta) error {
	session := &models.RefreshSession{
		UserID:    userID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: expiresAt,
		IPAddress: truncate(client.IPAddress, 64),
		UserAgent: truncate(client.UserAgent, 512),
		CreatedAt: l.now(),
	}
	return l.sessions.Create(ctx, session)
}

func (l *SessionLedger) IsSessionValid(ctx context.Context, userID uint, refreshToken string) (bool, error) {
	_, err := l.sessions.FindActive(ctx, userID, hashToken(refreshToken), l.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RevokeAllForUser moves every active session of the user to revoked and
// returns how many rows changed. Zero is not an error.
func (l *SessionLedger) RevokeAllForUser(ctx context.Context, userID uint) (int64, error) {
	return l.sessions.RevokeAllForUser(ctx, userID)
}

// Revoke revokes the single session backing refreshToken. It returns false if
// no active row was changed, e.g. when a concurrent rotation got there first.
func (l *SessionLedger) Revoke(ctx context.Context, userID uint, refreshToken string) (bool, error) {
	n, err := l.sessions.RevokeByHash(ctx, userID, hashToken(refreshToken))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *SessionLedger) ActiveSessions(ctx context.Context, userID uint) ([]models.RefreshSession, error) {
	return l.sessions.ListActive(ctx, userID, l.now())
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}

// truncate cuts s to at most max bytes on a rune boundary. Invalid UTF-8 is
// replaced, since the column rejects it.
func truncate(s string, max int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
