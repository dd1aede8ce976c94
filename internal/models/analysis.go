package models

import (
	"time"

	"gorm.io/gorm"
)

// OrganizationAnalysis is an agent's review of an organization's website.
// It shares the run lifecycle; AnalysisURL points at the finished report.
type OrganizationAnalysis struct {
	ID             uint           `gorm:"primaryKey" json:"-"`
	Slug           string         `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	Status         RunStatus      `gorm:"size:20;not null;default:'pending';index" json:"status"`
	AnalysisURL    string         `gorm:"size:1024" json:"analysisUrl,omitempty"`
	ModelSlug      string         `gorm:"size:100" json:"modelSlug"`
	ModelProvider  string         `gorm:"size:50" json:"modelProvider"`
	OrganizationID uint           `gorm:"not null;index" json:"-"`
	CreatedByID    uint           `gorm:"not null" json:"-"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	FinishedAt     *time.Time     `json:"finishedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	CreatedBy    *User         `gorm:"foreignKey:CreatedByID" json:"createdBy,omitempty"`
}

// TableName overrides the table name used by gorm.
func (OrganizationAnalysis) TableName() string {
	return "organizations_analyses"
}
