package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inflnara/inflnara-api/internal/models"
)

// MemoryUserRepository keeps users in process. Email uniqueness is enforced
// under the same lock as the insert, like a database unique index.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	nextID  uint
	byID    map[uint]models.User
	byEmail map[string]uint
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[uint]models.User),
		byEmail: make(map[string]uint),
	}
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[user.Email]; taken {
		return ErrDuplicateEmail
	}
	r.nextID++
	now := time.Now()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) UpdateName(_ context.Context, id uint, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Name = name
	u.UpdatedAt = time.Now()
	r.byID[id] = u
	return nil
}

func (r *MemoryUserRepository) remove(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		delete(r.byEmail, u.Email)
		delete(r.byID, id)
	}
}

// SetActive flips the active flag; used to deactivate accounts in local runs and tests.
func (r *MemoryUserRepository) SetActive(id uint, active bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return false
	}
	u.IsActive = active
	u.UpdatedAt = time.Now()
	r.byID[id] = u
	return true
}

type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions []models.RefreshSession
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{}
}

func (r *MemorySessionRepository) Create(_ context.Context, session *models.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	r.sessions = append(r.sessions, *session)
	return nil
}

func (r *MemorySessionRepository) FindActive(_ context.Context, userID uint, tokenHash string, now time.Time) (*models.RefreshSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.sessions {
		s := r.sessions[i]
		if s.UserID == userID && s.TokenHash == tokenHash && s.Honourable(now) {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemorySessionRepository) RevokeAllForUser(_ context.Context, userID uint) (int64, error) {
	return int64(len(r.revokeAllForUser(userID))), nil
}

func (r *MemorySessionRepository) RevokeByHash(_ context.Context, userID uint, tokenHash string) (int64, error) {
	return int64(len(r.revokeByHash(userID, tokenHash))), nil
}

func (r *MemorySessionRepository) revokeAllForUser(userID uint) []uuid.UUID {
	return r.revoke(func(s *models.RefreshSession) bool { return s.UserID == userID })
}

func (r *MemorySessionRepository) revokeByHash(userID uint, tokenHash string) []uuid.UUID {
	return r.revoke(func(s *models.RefreshSession) bool {
		return s.UserID == userID && s.TokenHash == tokenHash
	})
}

// revoke returns the ids of the rows it changed.
func (r *MemorySessionRepository) revoke(match func(*models.RefreshSession) bool) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for i := range r.sessions {
		if !r.sessions[i].Revoked && match(&r.sessions[i]) {
			r.sessions[i].Revoked = true
			ids = append(ids, r.sessions[i].ID)
		}
	}
	return ids
}

// discard drops rows created by a rolled back transaction and reverts its revocations.
func (r *MemorySessionRepository) discard(created, revoked []uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[uuid.UUID]bool, len(created))
	for _, id := range created {
		drop[id] = true
	}
	restore := make(map[uuid.UUID]bool, len(revoked))
	for _, id := range revoked {
		restore[id] = true
	}
	kept := r.sessions[:0]
	for _, s := range r.sessions {
		if drop[s.ID] {
			continue
		}
		if restore[s.ID] {
			s.Revoked = false
		}
		kept = append(kept, s)
	}
	r.sessions = kept
}

func (r *MemorySessionRepository) ListActive(_ context.Context, userID uint, now time.Time) ([]models.RefreshSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.RefreshSession
	for _, s := range r.sessions {
		if s.UserID == userID && s.Honourable(now) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// All returns a copy of every stored row, revoked and expired included.
func (r *MemorySessionRepository) All() []models.RefreshSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.RefreshSession, len(r.sessions))
	copy(out, r.sessions)
	return out
}
