package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

// TestRepository defines data access for tests and their versions.
type TestRepository interface {
	// CreateWithVersion inserts the test with version as its first, default version.
	CreateWithVersion(ctx context.Context, test *models.Test, version *models.TestVersion) error

	// AddVersion appends a version with the next number. When makeDefault is
	// set the previous default is cleared in the same transaction.
	AddVersion(ctx context.Context, testID uint, version *models.TestVersion, makeDefault bool) error

	// SetDefaultVersion makes the version with slug the test's default.
	// Returns nil when the test has no such version.
	SetDefaultVersion(ctx context.Context, testID uint, versionSlug string) (*models.TestVersion, error)

	// FindBySlugAndProject returns the test with versions ordered by number.
	FindBySlugAndProject(ctx context.Context, slug string, projectID uint) (*models.Test, error)

	// FindBySlugsAndProject returns the project's tests whose slug is in slugs, in no particular order.
	FindBySlugsAndProject(ctx context.Context, slugs []string, projectID uint) ([]models.Test, error)

	ListByProject(ctx context.Context, projectID uint) ([]models.Test, error)
	FindDefaultVersion(ctx context.Context, testID uint) (*models.TestVersion, error)

	// Delete soft-deletes the test. Versions, runs and suite memberships stay
	// for history; deleted tests drop out of every lookup.
	Delete(ctx context.Context, testID uint) error
}

type testRepository struct {
	db *gorm.DB
}

// NewTestRepository creates a new TestRepository instance
func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) CreateWithVersion(ctx context.Context, test *models.Test, version *models.TestVersion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Versions", "Project", "CreatedBy").Create(test).Error; err != nil {
			return err
		}

		version.TestID = test.ID
		version.Number = 1
		version.IsDefault = true
		if err := tx.Omit("Test", "CreatedBy").Create(version).Error; err != nil {
			return err
		}

		test.Versions = []models.TestVersion{*version}
		return nil
	})
}

func (r *testRepository) AddVersion(ctx context.Context, testID uint, version *models.TestVersion, makeDefault bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := nextVersionNumber(tx, &models.TestVersion{}, "test_id", testID)
		if err != nil {
			return err
		}

		if makeDefault {
			if err := clearDefault(tx, &models.TestVersion{}, "test_id", testID); err != nil {
				return err
			}
		}

		version.TestID = testID
		version.Number = number
		version.IsDefault = makeDefault
		return tx.Omit("Test", "CreatedBy").Create(version).Error
	})
}

func (r *testRepository) SetDefaultVersion(ctx context.Context, testID uint, versionSlug string) (*models.TestVersion, error) {
	var version models.TestVersion
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := setDefault(tx, &models.TestVersion{}, "test_id", testID, versionSlug)
		if err != nil {
			return err
		}
		if !found {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("test_id = ? AND slug = ?", testID, versionSlug).First(&version).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *testRepository) FindBySlugAndProject(ctx context.Context, slug string, projectID uint) (*models.Test, error) {
	var test models.Test
	err := r.db.WithContext(ctx).
		Preload("Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("number ASC")
		}).
		Preload("Versions.CreatedBy").
		Where("slug = ? AND project_id = ?", slug, projectID).
		First(&test).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindBySlugsAndProject(ctx context.Context, slugs []string, projectID uint) ([]models.Test, error) {
	var tests []models.Test
	if len(slugs) == 0 {
		return tests, nil
	}
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND slug IN ?", projectID, slugs).
		Find(&tests).Error
	return tests, err
}

func (r *testRepository) ListByProject(ctx context.Context, projectID uint) ([]models.Test, error) {
	var tests []models.Test
	err := r.db.WithContext(ctx).
		Preload("Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("number ASC")
		}).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&tests).Error
	return tests, err
}

func (r *testRepository) FindDefaultVersion(ctx context.Context, testID uint) (*models.TestVersion, error) {
	var version models.TestVersion
	err := r.db.WithContext(ctx).
		Where("test_id = ? AND is_default = ?", testID, true).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *testRepository) Delete(ctx context.Context, testID uint) error {
	return r.db.WithContext(ctx).Delete(&models.Test{}, testID).Error
}
