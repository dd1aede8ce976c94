package models

import (
	"time"
)

// Project groups tests and suites inside an organization.
type Project struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	Slug            string    `gorm:"size:255;not null;uniqueIndex:idx_organization_project_slug" json:"slug"`
	OrganizationID  uint      `gorm:"not null;uniqueIndex:idx_organization_project_slug" json:"-"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	ProfileImageURL string    `gorm:"size:1024" json:"profileImageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

// TableName overrides the table name used by gorm.
func (Project) TableName() string {
	return "projects"
}

// Summary returns the short form embedded in nested responses.
func (p *Project) Summary() *ProjectSummary {
	if p == nil {
		return nil
	}
	return &ProjectSummary{Slug: p.Slug, Name: p.Name, ProfileImageURL: p.ProfileImageURL}
}

// ProjectSummary is the short project shape.
type ProjectSummary struct {
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}
