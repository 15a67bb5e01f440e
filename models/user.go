package models

import (
	"time"

	"gorm.io/gorm"
)

// Role values stored on users. Admins may manage accounts and quotas.
const (
	RoleStandard = "standard"
	RoleAdmin    = "admin"
)

// DefaultMonthlyLimit applies when an account is created without an explicit ceiling.
const DefaultMonthlyLimit = 30

// User represents an account. Passwords are stored as bcrypt hashes only.
// Accounts are created by an administrator or provisioned through OAuth;
// there is no delete path.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DisplayName  string    `gorm:"size:64" json:"display_name"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         string    `gorm:"size:16;not null;default:standard" json:"role"`
	MonthlyLimit int       `gorm:"not null;default:30" json:"monthly_limit"`
	Provider     string    `gorm:"size:32" json:"provider"`
	ProviderID   string    `gorm:"size:255" json:"provider_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Uploads      []Upload  `json:"-"`
}

// IsAdmin reports whether the account holds the administrator role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// BeforeCreate hook ensures timestamps and the limit default are set even
// when the row is created outside the normal admin path.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.MonthlyLimit <= 0 {
		u.MonthlyLimit = DefaultMonthlyLimit
	}
	if u.Role == "" {
		u.Role = RoleStandard
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
