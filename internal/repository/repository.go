// Package repository holds the storage contracts consumed by the auth services
// and their gorm (postgres) and in-memory implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/inflnara/inflnara-api/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository is the credential store.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	// Create fails with ErrDuplicateEmail when the email is already taken,
	// including when a concurrent insert wins the race.
	Create(ctx context.Context, user *models.User) error
	UpdateName(ctx context.Context, id uint, name string) error
}

// SessionRepository persists refresh session rows keyed by user id and token hash.
type SessionRepository interface {
	Create(ctx context.Context, session *models.RefreshSession) error
	FindActive(ctx context.Context, userID uint, tokenHash string, now time.Time) (*models.RefreshSession, error)
	RevokeAllForUser(ctx context.Context, userID uint) (int64, error)
	RevokeByHash(ctx context.Context, userID uint, tokenHash string) (int64, error)
	ListActive(ctx context.Context, userID uint, now time.Time) ([]models.RefreshSession, error)
}

// Stores is the pair of repositories bound to one transaction.
type Stores struct {
	Users    UserRepository
	Sessions SessionRepository
}

// Transactor runs fn with repositories that commit together. If fn returns an
// error, every write made through the given Stores is rolled back.
type Transactor interface {
	Transaction(ctx context.Context, fn func(Stores) error) error
}
