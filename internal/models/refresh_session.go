package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshSession is one ledger row per issued refresh token. Rows are never
// deleted; logout only flips Revoked.
type RefreshSession struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_refresh_sessions_user_revoked,priority:1" json:"user_id"`
	TokenHash string    `gorm:"not null;size:64;index" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Revoked   bool      `gorm:"not null;default:false;index:idx_refresh_sessions_user_revoked,priority:2" json:"revoked"`
	IPAddress string    `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent string    `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (RefreshSession) TableName() string {
	return "refresh_sessions"
}

// Honourable reports whether the row can still back a refresh at now.
func (s *RefreshSession) Honourable(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}
