package models

import "time"

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleInfluencer = "influencer"
)

// User is the credential record. Password holds the bcrypt hash only.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"not null;size:255;uniqueIndex:idx_users_email" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Name      string    `gorm:"not null;size:100" json:"name"`
	Role      string    `gorm:"size:20;not null;default:'user'" json:"role"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
