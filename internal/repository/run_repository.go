package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

// TestRunRepository defines data access for test runs.
type TestRunRepository interface {
	Create(ctx context.Context, run *models.TestRun) error

	// FindBySlug returns the run with its version and test preloaded.
	FindBySlug(ctx context.Context, slug string) (*models.TestRun, error)

	// FindBySlugAndTest returns the run only when it executed a version of testID.
	FindBySlugAndTest(ctx context.Context, slug string, testID uint) (*models.TestRun, error)

	// ListByTest returns runs of every version of the test, newest first.
	ListByTest(ctx context.Context, testID uint, limit, offset int) ([]models.TestRun, int64, error)

	// ListByProject returns runs of every test in the project, newest first.
	ListByProject(ctx context.Context, projectID uint, limit, offset int) ([]models.TestRun, int64, error)

	// SaveTask stores the dispatched payload on the run.
	SaveTask(ctx context.Context, runID uint, task []byte) error

	// UpdateStatus saves run's report fields provided the stored status still
	// equals expected, and recomputes the parent suite run's status. Returns
	// ErrStaleRun when the run moved on in the meantime. The updated parent,
	// if any, is returned.
	UpdateStatus(ctx context.Context, run *models.TestRun, expected models.RunStatus) (*models.TestSuiteRun, error)
}

type testRunRepository struct {
	db *gorm.DB
}

// NewTestRunRepository creates a new TestRunRepository instance
func NewTestRunRepository(db *gorm.DB) TestRunRepository {
	return &testRunRepository{db: db}
}

func (r *testRunRepository) Create(ctx context.Context, run *models.TestRun) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(run).Error
}

func (r *testRunRepository) FindBySlug(ctx context.Context, slug string) (*models.TestRun, error) {
	var run models.TestRun
	err := r.db.WithContext(ctx).
		Preload("TestVersion.Test").
		Preload("TestSuiteRun").
		Preload("CreatedBy").
		Where("slug = ?", slug).
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *testRunRepository) FindBySlugAndTest(ctx context.Context, slug string, testID uint) (*models.TestRun, error) {
	var run models.TestRun
	err := r.db.WithContext(ctx).
		Preload("TestVersion").
		Preload("CreatedBy").
		Joins("JOIN tests_versions ON tests_versions.id = tests_runs.test_version_id").
		Where("tests_runs.slug = ? AND tests_versions.test_id = ?", slug, testID).
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *testRunRepository) ListByTest(ctx context.Context, testID uint, limit, offset int) ([]models.TestRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TestRun{}).
		Joins("JOIN tests_versions ON tests_versions.id = tests_runs.test_version_id").
		Where("tests_versions.test_id = ?", testID)
	return listRuns(query, limit, offset)
}

func (r *testRunRepository) ListByProject(ctx context.Context, projectID uint, limit, offset int) ([]models.TestRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TestRun{}).
		Joins("JOIN tests_versions ON tests_versions.id = tests_runs.test_version_id").
		Joins("JOIN tests ON tests.id = tests_versions.test_id").
		Where("tests.project_id = ? AND tests.deleted_at IS NULL", projectID)
	return listRuns(query, limit, offset)
}

func listRuns(query *gorm.DB, limit, offset int) ([]models.TestRun, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.TestRun
	err := query.
		Preload("TestVersion.Test").
		Preload("CreatedBy").
		Order("tests_runs.created_at DESC, tests_runs.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	return runs, total, err
}

func (r *testRunRepository) SaveTask(ctx context.Context, runID uint, task []byte) error {
	return r.db.WithContext(ctx).Model(&models.TestRun{}).
		Where("id = ?", runID).
		Update("task", string(task)).Error
}

func (r *testRunRepository) UpdateStatus(ctx context.Context, run *models.TestRun, expected models.RunStatus) (*models.TestSuiteRun, error) {
	var parent *models.TestSuiteRun

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.TestRun{}).
			Where("id = ? AND status = ?", run.ID, expected).
			Updates(map[string]interface{}{
				"status":      run.Status,
				"results_url": run.ResultsURL,
				"screenshots": run.Screenshots,
				"started_at":  run.StartedAt,
				"finished_at": run.FinishedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleRun
		}

		if run.TestSuiteRunID == nil {
			return nil
		}

		var statuses []models.RunStatus
		if err := tx.Model(&models.TestRun{}).
			Where("test_suite_run_id = ?", *run.TestSuiteRunID).
			Pluck("status", &statuses).Error; err != nil {
			return err
		}

		var suiteRun models.TestSuiteRun
		if err := tx.First(&suiteRun, *run.TestSuiteRunID).Error; err != nil {
			return err
		}
		next := models.AggregateStatus(statuses)
		if next != suiteRun.Status {
			if err := tx.Model(&suiteRun).Update("status", next).Error; err != nil {
				return err
			}
		}
		parent = &suiteRun
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parent, nil
}

// TestSuiteRunRepository defines data access for suite runs.
type TestSuiteRunRepository interface {
	// CreateWithTestRuns inserts the suite run and its test runs in one transaction.
	CreateWithTestRuns(ctx context.Context, suiteRun *models.TestSuiteRun, runs []*models.TestRun) error

	// FindBySlugAndTestSuite returns the run with version and test runs preloaded.
	FindBySlugAndTestSuite(ctx context.Context, slug string, suiteID uint) (*models.TestSuiteRun, error)

	// ListByTestSuite returns runs of every version of the suite, newest first.
	ListByTestSuite(ctx context.Context, suiteID uint) ([]models.TestSuiteRun, error)
}

type testSuiteRunRepository struct {
	db *gorm.DB
}

// NewTestSuiteRunRepository creates a new TestSuiteRunRepository instance
func NewTestSuiteRunRepository(db *gorm.DB) TestSuiteRunRepository {
	return &testSuiteRunRepository{db: db}
}

func (r *testSuiteRunRepository) CreateWithTestRuns(ctx context.Context, suiteRun *models.TestSuiteRun, runs []*models.TestRun) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(suiteRun).Error; err != nil {
			return err
		}
		for _, run := range runs {
			run.TestSuiteRunID = &suiteRun.ID
			if err := tx.Omit(clause.Associations).Create(run).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *testSuiteRunRepository) FindBySlugAndTestSuite(ctx context.Context, slug string, suiteID uint) (*models.TestSuiteRun, error) {
	var run models.TestSuiteRun
	err := r.db.WithContext(ctx).
		Preload("TestSuiteVersion").
		Preload("TestRuns.TestVersion.Test").
		Preload("CreatedBy").
		Joins("JOIN test_suites_versions ON test_suites_versions.id = test_suites_runs.test_suite_version_id").
		Where("test_suites_runs.slug = ? AND test_suites_versions.test_suite_id = ?", slug, suiteID).
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *testSuiteRunRepository) ListByTestSuite(ctx context.Context, suiteID uint) ([]models.TestSuiteRun, error) {
	var runs []models.TestSuiteRun
	err := r.db.WithContext(ctx).
		Preload("TestSuiteVersion").
		Preload("TestRuns").
		Preload("CreatedBy").
		Joins("JOIN test_suites_versions ON test_suites_versions.id = test_suites_runs.test_suite_version_id").
		Where("test_suites_versions.test_suite_id = ?", suiteID).
		Order("test_suites_runs.created_at DESC, test_suites_runs.id DESC").
		Find(&runs).Error
	return runs, err
}
