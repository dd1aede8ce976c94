package models

import (
	"time"

	"gorm.io/gorm"
)

// Test is a single scenario in a project. Its content lives in versions.
type Test struct {
	ID          uint           `gorm:"primaryKey" json:"-"`
	Slug        string         `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	ProjectID   uint           `gorm:"not null;index" json:"-"`
	CreatedByID uint           `gorm:"not null" json:"-"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Project   *Project      `gorm:"foreignKey:ProjectID" json:"-"`
	CreatedBy *User         `gorm:"foreignKey:CreatedByID" json:"-"`
	Versions  []TestVersion `gorm:"foreignKey:TestID" json:"versions,omitempty"`
}

// TableName overrides the table name used by gorm.
func (Test) TableName() string {
	return "tests"
}

// DefaultVersion returns the loaded default version, if any.
func (t *Test) DefaultVersion() *TestVersion {
	for i := range t.Versions {
		if t.Versions[i].IsDefault {
			return &t.Versions[i]
		}
	}
	return nil
}

// TestVersion is one revision of a test's title and task description.
type TestVersion struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Slug        string    `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	TestID      uint      `gorm:"not null;uniqueIndex:idx_test_version_number" json:"-"`
	Number      int       `gorm:"not null;uniqueIndex:idx_test_version_number" json:"number"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	IsDefault   bool      `gorm:"default:false;index" json:"isDefault"`
	CreatedByID uint      `gorm:"not null" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Test      *Test `gorm:"foreignKey:TestID" json:"-"`
	CreatedBy *User `gorm:"foreignKey:CreatedByID" json:"createdBy,omitempty"`
}

// TableName overrides the table name used by gorm.
func (TestVersion) TableName() string {
	return "tests_versions"
}
