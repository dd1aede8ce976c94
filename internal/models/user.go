package models

import (
	"time"
)

// User is an account that can belong to organizations.
type User struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	Email           string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	DisplayName     string    `gorm:"size:255" json:"displayName"`
	PasswordHash    string    `gorm:"size:255;not null" json:"-"`
	ProfileImageURL string    `gorm:"size:1024" json:"profileImageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TableName overrides the table name used by gorm.
func (User) TableName() string {
	return "users"
}

// Summary returns the public author shape embedded in other responses.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{Email: u.Email, DisplayName: u.DisplayName, ProfileImageURL: u.ProfileImageURL}
}

// UserSummary is the author block attached to versions and runs.
type UserSummary struct {
	Email           string `json:"email"`
	DisplayName     string `json:"displayName"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// Session is a server-side login session addressed by an opaque token.
type Session struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Token     string    `gorm:"uniqueIndex;size:64;not null" json:"token"`
	UserID    uint      `gorm:"not null;index" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName overrides the table name used by gorm.
func (Session) TableName() string {
	return "sessions"
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
