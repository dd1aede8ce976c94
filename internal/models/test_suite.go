package models

import (
	"time"

	"gorm.io/gorm"
)

// TestSuite is a versioned collection of tests in a project.
type TestSuite struct {
	ID          uint           `gorm:"primaryKey" json:"-"`
	Slug        string         `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	ProjectID   uint           `gorm:"not null;index" json:"-"`
	CreatedByID uint           `gorm:"not null" json:"-"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Project   *Project           `gorm:"foreignKey:ProjectID" json:"-"`
	CreatedBy *User              `gorm:"foreignKey:CreatedByID" json:"-"`
	Versions  []TestSuiteVersion `gorm:"foreignKey:TestSuiteID" json:"versions,omitempty"`
}

// TableName overrides the table name used by gorm.
func (TestSuite) TableName() string {
	return "test_suites"
}

// DefaultVersion returns the loaded default version, if any.
func (s *TestSuite) DefaultVersion() *TestSuiteVersion {
	for i := range s.Versions {
		if s.Versions[i].IsDefault {
			return &s.Versions[i]
		}
	}
	return nil
}

// TestSuiteVersion is a snapshot of a suite's membership. Once a suite run
// references it, its membership is frozen and changes go to a new version.
type TestSuiteVersion struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Slug        string    `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	TestSuiteID uint      `gorm:"not null;uniqueIndex:idx_test_suite_version_number" json:"-"`
	Number      int       `gorm:"not null;uniqueIndex:idx_test_suite_version_number" json:"number"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	IsDefault   bool      `gorm:"default:false;index" json:"isDefault"`
	CreatedByID uint      `gorm:"not null" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	TestSuite *TestSuite      `gorm:"foreignKey:TestSuiteID" json:"-"`
	CreatedBy *User           `gorm:"foreignKey:CreatedByID" json:"createdBy,omitempty"`
	Members   []TestSuiteTest `gorm:"foreignKey:TestSuiteVersionID" json:"-"`
	Runs      []TestSuiteRun  `gorm:"foreignKey:TestSuiteVersionID" json:"-"`
}

// TableName overrides the table name used by gorm.
func (TestSuiteVersion) TableName() string {
	return "test_suites_versions"
}

// TestSuiteTest is the membership edge between a suite version and a test.
type TestSuiteTest struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	TestSuiteVersionID uint      `gorm:"not null;uniqueIndex:idx_test_suite_version_test" json:"-"`
	TestID             uint      `gorm:"not null;uniqueIndex:idx_test_suite_version_test;index" json:"-"`
	CreatedAt          time.Time `json:"createdAt"`

	TestSuiteVersion *TestSuiteVersion `gorm:"foreignKey:TestSuiteVersionID" json:"-"`
	Test             *Test             `gorm:"foreignKey:TestID" json:"-"`
}

// TableName overrides the table name used by gorm.
func (TestSuiteTest) TableName() string {
	return "test_suites_tests"
}
