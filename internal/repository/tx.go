package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inflnara/inflnara-api/internal/models"
)

type GormTransactor struct {
	db *gorm.DB
}

func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

func (t *GormTransactor) Transaction(ctx context.Context, fn func(Stores) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Stores{
			Users:    NewGormUserRepository(tx),
			Sessions: NewGormSessionRepository(tx),
		})
	})
}

// MemoryTransactor serializes transactions and undoes their writes on error.
// Session writes are undone when sessions is a *MemorySessionRepository or a
// type embedding one.
type MemoryTransactor struct {
	mu       sync.Mutex
	users    *MemoryUserRepository
	sessions SessionRepository
}

func NewMemoryTransactor(users *MemoryUserRepository, sessions SessionRepository) *MemoryTransactor {
	return &MemoryTransactor{users: users, sessions: sessions}
}

type undoableSessions interface {
	SessionRepository
	revokeAllForUser(userID uint) []uuid.UUID
	revokeByHash(userID uint, tokenHash string) []uuid.UUID
	discard(created, revoked []uuid.UUID)
}

func (t *MemoryTransactor) Transaction(ctx context.Context, fn func(Stores) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	log := &memoryTxLog{}
	stores := Stores{
		Users:    &memoryTxUsers{MemoryUserRepository: t.users, log: log},
		Sessions: t.sessions,
	}
	undo, undoable := t.sessions.(undoableSessions)
	if undoable {
		stores.Sessions = &memoryTxSessions{inner: undo, log: log}
	}

	if err := fn(stores); err != nil {
		for _, id := range log.users {
			t.users.remove(id)
		}
		if undoable {
			undo.discard(log.sessions, log.revoked)
		}
		return err
	}
	return nil
}

type memoryTxLog struct {
	users    []uint
	sessions []uuid.UUID
	revoked  []uuid.UUID
}

type memoryTxUsers struct {
	*MemoryUserRepository
	log *memoryTxLog
}

func (u *memoryTxUsers) Create(ctx context.Context, user *models.User) error {
	if err := u.MemoryUserRepository.Create(ctx, user); err != nil {
		return err
	}
	u.log.users = append(u.log.users, user.ID)
	return nil
}

type memoryTxSessions struct {
	inner undoableSessions
	log   *memoryTxLog
}

func (s *memoryTxSessions) Create(ctx context.Context, session *models.RefreshSession) error {
	if err := s.inner.Create(ctx, session); err != nil {
		return err
	}
	s.log.sessions = append(s.log.sessions, session.ID)
	return nil
}

func (s *memoryTxSessions) FindActive(ctx context.Context, userID uint, tokenHash string, now time.Time) (*models.RefreshSession, error) {
	return s.inner.FindActive(ctx, userID, tokenHash, now)
}

func (s *memoryTxSessions) RevokeAllForUser(_ context.Context, userID uint) (int64, error) {
	ids := s.inner.revokeAllForUser(userID)
	s.log.revoked = append(s.log.revoked, ids...)
	return int64(len(ids)), nil
}

func (s *memoryTxSessions) RevokeByHash(_ context.Context, userID uint, tokenHash string) (int64, error) {
	ids := s.inner.revokeByHash(userID, tokenHash)
	s.log.revoked = append(s.log.revoked, ids...)
	return int64(len(ids)), nil
}

func (s *memoryTxSessions) ListActive(ctx context.Context, userID uint, now time.Time) ([]models.RefreshSession, error) {
	return s.inner.ListActive(ctx, userID, now)
}
