package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

// TestSuiteRepository defines data access for test suites.
type TestSuiteRepository interface {
	// CreateWithVersion inserts the suite with version as its first, default version.
	CreateWithVersion(ctx context.Context, suite *models.TestSuite, version *models.TestSuiteVersion) error

	// FindBySlugAndProject returns the suite with versions ordered by number.
	FindBySlugAndProject(ctx context.Context, slug string, projectID uint) (*models.TestSuite, error)

	ListByProject(ctx context.Context, projectID uint) ([]models.TestSuite, error)

	// RunCounts returns suite-run counts by status for each suite ID.
	RunCounts(ctx context.Context, suiteIDs []uint) (map[uint]*models.RunCounts, error)

	// Delete soft-deletes the suite. Versions and runs stay for history.
	Delete(ctx context.Context, suiteID uint) error
}

type testSuiteRepository struct {
	db *gorm.DB
}

// NewTestSuiteRepository creates a new TestSuiteRepository instance
func NewTestSuiteRepository(db *gorm.DB) TestSuiteRepository {
	return &testSuiteRepository{db: db}
}

func (r *testSuiteRepository) CreateWithVersion(ctx context.Context, suite *models.TestSuite, version *models.TestSuiteVersion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Versions", "Project", "CreatedBy").Create(suite).Error; err != nil {
			return err
		}

		version.TestSuiteID = suite.ID
		version.Number = 1
		version.IsDefault = true
		if err := tx.Omit("TestSuite", "CreatedBy", "Members", "Runs").Create(version).Error; err != nil {
			return err
		}

		suite.Versions = []models.TestSuiteVersion{*version}
		return nil
	})
}

func (r *testSuiteRepository) FindBySlugAndProject(ctx context.Context, slug string, projectID uint) (*models.TestSuite, error) {
	var suite models.TestSuite
	err := r.db.WithContext(ctx).
		Preload("Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("number ASC")
		}).
		Preload("Versions.CreatedBy").
		Where("slug = ? AND project_id = ?", slug, projectID).
		First(&suite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &suite, nil
}

func (r *testSuiteRepository) ListByProject(ctx context.Context, projectID uint) ([]models.TestSuite, error) {
	var suites []models.TestSuite
	err := r.db.WithContext(ctx).
		Preload("Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("number ASC")
		}).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&suites).Error
	return suites, err
}

func (r *testSuiteRepository) RunCounts(ctx context.Context, suiteIDs []uint) (map[uint]*models.RunCounts, error) {
	counts := make(map[uint]*models.RunCounts, len(suiteIDs))
	for _, id := range suiteIDs {
		counts[id] = &models.RunCounts{}
	}
	if len(suiteIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		TestSuiteID uint
		Status      models.RunStatus
		Count       int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.TestSuiteRun{}).
		Select("test_suites_versions.test_suite_id AS test_suite_id, test_suites_runs.status AS status, COUNT(*) AS count").
		Joins("JOIN test_suites_versions ON test_suites_versions.id = test_suites_runs.test_suite_version_id").
		Where("test_suites_versions.test_suite_id IN ?", suiteIDs).
		Group("test_suites_versions.test_suite_id, test_suites_runs.status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.TestSuiteID].Add(row.Status, row.Count)
	}
	return counts, nil
}

func (r *testSuiteRepository) Delete(ctx context.Context, suiteID uint) error {
	return r.db.WithContext(ctx).Delete(&models.TestSuite{}, suiteID).Error
}
