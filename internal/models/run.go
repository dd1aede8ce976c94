package models

import (
	"time"

	"gorm.io/datatypes"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// CanTransitionTo reports whether a run in state s may move to next.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	if !next.Valid() || s.IsTerminal() {
		return false
	}
	switch next {
	case RunStatusPending:
		return false
	case RunStatusRunning:
		return s == RunStatusPending
	default:
		return true
	}
}

// AggregateStatus derives a suite run's status from its test runs:
// running if any child is running, otherwise pending until every child is
// terminal, then failed if any child failed.
func AggregateStatus(children []RunStatus) RunStatus {
	if len(children) == 0 {
		return RunStatusPending
	}
	allTerminal, anyFailed := true, false
	for _, s := range children {
		switch s {
		case RunStatusRunning:
			return RunStatusRunning
		case RunStatusFailed:
			anyFailed = true
		case RunStatusSucceeded:
		default:
			allTerminal = false
		}
	}
	if !allTerminal {
		return RunStatusPending
	}
	if anyFailed {
		return RunStatusFailed
	}
	return RunStatusSucceeded
}

// RunCounts is the per-status breakdown shown on suite summaries.
type RunCounts struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// Add counts n runs in status s.
func (c *RunCounts) Add(s RunStatus, n int64) {
	c.Total += n
	switch s {
	case RunStatusPending:
		c.Pending += n
	case RunStatusRunning:
		c.Running += n
	case RunStatusSucceeded:
		c.Succeeded += n
	case RunStatusFailed:
		c.Failed += n
	}
}

// TestSuiteRun is one execution of a suite version. Its existence seals the
// version's membership.
type TestSuiteRun struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	Slug               string    `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	Status             RunStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ModelSlug          string    `gorm:"size:100" json:"modelSlug"`
	ModelProvider      string    `gorm:"size:50" json:"modelProvider"`
	TestSuiteVersionID uint      `gorm:"not null;index" json:"-"`
	CreatedByID        uint      `gorm:"not null" json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`

	TestSuiteVersion *TestSuiteVersion `gorm:"foreignKey:TestSuiteVersionID" json:"version,omitempty"`
	CreatedBy        *User             `gorm:"foreignKey:CreatedByID" json:"createdBy,omitempty"`
	TestRuns         []TestRun         `gorm:"foreignKey:TestSuiteRunID" json:"testRuns,omitempty"`
}

// TableName overrides the table name used by gorm.
func (TestSuiteRun) TableName() string {
	return "test_suites_runs"
}

// TestRun is one execution of a test version by an agent.
type TestRun struct {
	ID             uint                        `gorm:"primaryKey" json:"-"`
	Slug           string                      `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	Status         RunStatus                   `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ResultsURL     string                      `gorm:"size:1024" json:"resultsUrl,omitempty"`
	Screenshots    datatypes.JSONSlice[string] `gorm:"type:text" json:"screenshots,omitempty"`
	ModelSlug      string                      `gorm:"size:100" json:"modelSlug"`
	ModelProvider  string                      `gorm:"size:50" json:"modelProvider"`
	TestVersionID  uint                        `gorm:"not null;index" json:"-"`
	TestSuiteRunID *uint                       `gorm:"index" json:"-"`
	Task           datatypes.JSON              `gorm:"type:text" json:"-"` // last dispatched payload
	CreatedByID    uint                        `gorm:"not null" json:"-"`
	StartedAt      *time.Time                  `json:"startedAt,omitempty"`
	FinishedAt     *time.Time                  `json:"finishedAt,omitempty"`
	CreatedAt      time.Time                   `json:"createdAt"`
	UpdatedAt      time.Time                   `json:"updatedAt"`

	TestVersion  *TestVersion  `gorm:"foreignKey:TestVersionID" json:"version,omitempty"`
	TestSuiteRun *TestSuiteRun `gorm:"foreignKey:TestSuiteRunID" json:"-"`
	CreatedBy    *User         `gorm:"foreignKey:CreatedByID" json:"createdBy,omitempty"`
}

// TableName overrides the table name used by gorm.
func (TestRun) TableName() string {
	return "tests_runs"
}
