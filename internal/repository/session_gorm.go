package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inflnara/inflnara-api/internal/models"
)

type GormSessionRepository struct {
	db *gorm.DB
}

func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) Create(ctx context.Context, session *models.RefreshSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to store refresh session: %w", err)
	}
	return nil
}

func (r *GormSessionRepository) FindActive(ctx context.Context, userID uint, tokenHash string, now time.Time) (*models.RefreshSession, error) {
	var session models.RefreshSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND token_hash = ? AND revoked = ? AND expires_at > ?", userID, tokenHash, false, now).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find refresh session: %w", err)
	}
	return &session, nil
}

func (r *GormSessionRepository) RevokeAllForUser(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RefreshSession{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke refresh sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GormSessionRepository) RevokeByHash(ctx context.Context, userID uint, tokenHash string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RefreshSession{}).
		Where("user_id = ? AND token_hash = ? AND revoked = ?", userID, tokenHash, false).
		Update("revoked", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke refresh session: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GormSessionRepository) ListActive(ctx context.Context, userID uint, now time.Time) ([]models.RefreshSession, error) {
	var sessions []models.RefreshSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, now).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh sessions: %w", err)
	}
	return sessions, nil
}
