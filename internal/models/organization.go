package models

import (
	"time"
)

// Role is a user's role inside an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleTester Role = "tester"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleUser, RoleTester:
		return true
	}
	return false
}

// CanManage reports whether r may perform organization-level mutations.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// CanAssign reports whether a member with role r may grant role target.
// Only owners can create other owners.
func (r Role) CanAssign(target Role) bool {
	if !r.CanManage() || !target.Valid() {
		return false
	}
	if target == RoleOwner {
		return r == RoleOwner
	}
	return true
}

// Organization is the tenant that owns projects.
type Organization struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	Slug            string    `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	Domain          string    `gorm:"uniqueIndex;size:255;not null" json:"domain"`
	ProfileImageURL string    `gorm:"size:1024" json:"profileImageUrl,omitempty"`
	CreatedByID     uint      `gorm:"not null" json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	Memberships []Membership `gorm:"foreignKey:OrganizationID" json:"-"`
}

// TableName overrides the table name used by gorm.
func (Organization) TableName() string {
	return "organizations"
}

// Summary returns the short form embedded in nested responses.
func (o *Organization) Summary() *OrganizationSummary {
	if o == nil {
		return nil
	}
	return &OrganizationSummary{Slug: o.Slug, Name: o.Name, ProfileImageURL: o.ProfileImageURL}
}

// OrganizationSummary is the short organization shape.
type OrganizationSummary struct {
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// Membership links a user to an organization with a role.
type Membership struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	OrganizationID uint      `gorm:"not null;uniqueIndex:idx_organization_user" json:"-"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_organization_user;index" json:"-"`
	Role           Role      `gorm:"size:20;not null;default:'user'" json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	User         *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName overrides the table name used by gorm.
func (Membership) TableName() string {
	return "users_organizations"
}

// Invite is a pending membership for an email without an account.
type Invite struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	Email          string    `gorm:"size:255;not null;index" json:"email"`
	Role           Role      `gorm:"size:20;not null" json:"role"`
	Token          string    `gorm:"uniqueIndex;size:64;not null" json:"token"`
	ExpiresAt      time.Time `gorm:"not null" json:"expiresAt"`
	IsUsed         bool      `gorm:"default:false" json:"isUsed"`
	OrganizationID uint      `gorm:"not null;index" json:"-"`
	InvitedByID    uint      `gorm:"not null" json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

// TableName overrides the table name used by gorm.
func (Invite) TableName() string {
	return "invites"
}

// Expired reports whether the invite can no longer be redeemed at now.
func (i *Invite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
