package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

// MembershipMode selects how the requested tests combine with a version's current membership.
type MembershipMode int

const (
	// MembershipReplace makes the requested tests the whole membership.
	MembershipReplace MembershipMode = iota
	// MembershipAdd appends the requested tests.
	MembershipAdd
	// MembershipRemove drops the requested tests.
	MembershipRemove
)

func (m MembershipMode) String() string {
	switch m {
	case MembershipReplace:
		return "replace"
	case MembershipAdd:
		return "add"
	case MembershipRemove:
		return "remove"
	}
	return fmt.Sprintf("MembershipMode(%d)", int(m))
}

// MembershipChange describes one membership update of a suite version.
type MembershipChange struct {
	VersionID uint
	ProjectID uint
	ActorID   uint
	TestSlugs []string
	Mode      MembershipMode

	// ForkSlug is the slug given to the new version when the target is sealed.
	ForkSlug string
}

// MembershipResult reports what ApplyMembership did.
type MembershipResult struct {
	// Version holds the resulting membership: the target itself, or the fork.
	Version *models.TestSuiteVersion
	Forked  bool

	// Added are the requested tests attached by this change, in request order.
	Added []models.Test
	// Removed are the requested tests detached by this change, in request order.
	Removed []models.Test

	// Unresolved are slugs that matched no test of the project.
	Unresolved []string
	// Duplicates are slugs repeated in the request or, when adding, already members.
	Duplicates []string
}

// TestSuiteVersionRepository defines data access for suite versions and their membership.
type TestSuiteVersionRepository interface {
	// CreateWithTestSuite appends version to its suite with the next number.
	// When makeDefault is set the previous default is cleared in the same
	// transaction. When copyFromID is non-nil that version's membership is
	// copied onto the new version.
	CreateWithTestSuite(ctx context.Context, version *models.TestSuiteVersion, makeDefault bool, copyFromID *uint) error

	FindBySlugAndTestSuite(ctx context.Context, slug string, suiteID uint) (*models.TestSuiteVersion, error)

	// SetAsDefault makes the version with slug the suite's default.
	// Returns nil when the suite has no such version.
	SetAsDefault(ctx context.Context, suiteID uint, slug string) (*models.TestSuiteVersion, error)

	// CountRuns returns the number of suite runs recorded against the version.
	CountRuns(ctx context.Context, versionID uint) (int64, error)

	// ListTests returns the live member tests with their default version preloaded.
	ListTests(ctx context.Context, versionID uint) ([]models.Test, error)

	// AddTestToSuiteVersion attaches one test. Returns ErrDuplicateMembership
	// when the test is already a member.
	AddTestToSuiteVersion(ctx context.Context, versionID, testID uint) error

	// ApplyMembership updates membership in one transaction. A version without
	// runs is changed in place; a version with runs is left untouched and a new
	// default version carrying the resulting membership is created instead.
	// An add or remove that changes nothing never creates a version.
	ApplyMembership(ctx context.Context, change MembershipChange) (*MembershipResult, error)
}

type testSuiteVersionRepository struct {
	db *gorm.DB
}

// NewTestSuiteVersionRepository creates a new TestSuiteVersionRepository instance
func NewTestSuiteVersionRepository(db *gorm.DB) TestSuiteVersionRepository {
	return &testSuiteVersionRepository{db: db}
}

func (r *testSuiteVersionRepository) CreateWithTestSuite(ctx context.Context, version *models.TestSuiteVersion, makeDefault bool, copyFromID *uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createVersion(tx, version, makeDefault); err != nil {
			return err
		}
		if copyFromID == nil {
			return nil
		}

		var testIDs []uint
		if err := tx.Model(&models.TestSuiteTest{}).
			Where("test_suite_version_id = ?", *copyFromID).
			Order("id ASC").
			Pluck("test_id", &testIDs).Error; err != nil {
			return err
		}
		return insertMembers(tx, version.ID, testIDs)
	})
}

func (r *testSuiteVersionRepository) FindBySlugAndTestSuite(ctx context.Context, slug string, suiteID uint) (*models.TestSuiteVersion, error) {
	var version models.TestSuiteVersion
	err := r.db.WithContext(ctx).
		Preload("CreatedBy").
		Where("slug = ? AND test_suite_id = ?", slug, suiteID).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *testSuiteVersionRepository) SetAsDefault(ctx context.Context, suiteID uint, slug string) (*models.TestSuiteVersion, error) {
	var version models.TestSuiteVersion
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := setDefault(tx, &models.TestSuiteVersion{}, "test_suite_id", suiteID, slug)
		if err != nil {
			return err
		}
		if !found {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("test_suite_id = ? AND slug = ?", suiteID, slug).First(&version).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *testSuiteVersionRepository) CountRuns(ctx context.Context, versionID uint) (int64, error) {
	return countRuns(r.db.WithContext(ctx), versionID)
}

func (r *testSuiteVersionRepository) ListTests(ctx context.Context, versionID uint) ([]models.Test, error) {
	var tests []models.Test
	err := r.db.WithContext(ctx).
		Preload("Versions", "is_default = ?", true).
		Joins("JOIN test_suites_tests ON test_suites_tests.test_id = tests.id").
		Where("test_suites_tests.test_suite_version_id = ?", versionID).
		Order("test_suites_tests.id ASC").
		Find(&tests).Error
	return tests, err
}

func (r *testSuiteVersionRepository) AddTestToSuiteVersion(ctx context.Context, versionID, testID uint) error {
	err := r.db.WithContext(ctx).Create(&models.TestSuiteTest{
		TestSuiteVersionID: versionID,
		TestID:             testID,
	}).Error
	if isDuplicate(err) {
		return ErrDuplicateMembership
	}
	return err
}

func (r *testSuiteVersionRepository) ApplyMembership(ctx context.Context, change MembershipChange) (*MembershipResult, error) {
	result := &MembershipResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.TestSuiteVersion
		if err := tx.First(&target, change.VersionID).Error; err != nil {
			return err
		}

		requested, err := resolveTests(tx, change.ProjectID, change.TestSlugs, result)
		if err != nil {
			return err
		}

		var existing []uint
		if err := tx.Model(&models.TestSuiteTest{}).
			Where("test_suite_version_id = ?", target.ID).
			Order("id ASC").
			Pluck("test_id", &existing).Error; err != nil {
			return err
		}

		desired := planMembership(change.Mode, existing, requested, result)

		runs, err := countRuns(tx, target.ID)
		if err != nil {
			return err
		}

		unchanged := change.Mode != MembershipReplace && len(result.Added) == 0 && len(result.Removed) == 0
		if runs == 0 || unchanged {
			result.Version = &target
			return replaceMembers(tx, target.ID, existing, desired)
		}

		fork := &models.TestSuiteVersion{
			Slug:        change.ForkSlug,
			TestSuiteID: target.TestSuiteID,
			Title:       target.Title,
			Description: target.Description,
			CreatedByID: change.ActorID,
		}
		if err := createVersion(tx, fork, true); err != nil {
			return err
		}
		result.Version = fork
		result.Forked = true
		return insertMembers(tx, fork.ID, desired)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// createVersion appends version to its suite with the next free number.
func createVersion(tx *gorm.DB, version *models.TestSuiteVersion, makeDefault bool) error {
	number, err := nextVersionNumber(tx, &models.TestSuiteVersion{}, "test_suite_id", version.TestSuiteID)
	if err != nil {
		return err
	}

	if makeDefault {
		if err := clearDefault(tx, &models.TestSuiteVersion{}, "test_suite_id", version.TestSuiteID); err != nil {
			return err
		}
	}

	version.Number = number
	version.IsDefault = makeDefault
	return tx.Omit("TestSuite", "CreatedBy", "Members", "Runs").Create(version).Error
}

func countRuns(db *gorm.DB, versionID uint) (int64, error) {
	var n int64
	err := db.Model(&models.TestSuiteRun{}).
		Where("test_suite_version_id = ?", versionID).
		Count(&n).Error
	return n, err
}

// resolveTests maps slugs to the project's live tests, keeping request order
// and dropping repeats. Misses and repeats are recorded on result.
func resolveTests(tx *gorm.DB, projectID uint, slugs []string, result *MembershipResult) ([]models.Test, error) {
	unique := make([]string, 0, len(slugs))
	seen := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		if seen[slug] {
			result.Duplicates = append(result.Duplicates, slug)
			continue
		}
		seen[slug] = true
		unique = append(unique, slug)
	}

	var found []models.Test
	if len(unique) > 0 {
		if err := tx.Where("project_id = ? AND slug IN ?", projectID, unique).Find(&found).Error; err != nil {
			return nil, err
		}
	}

	bySlug := make(map[string]models.Test, len(found))
	for _, t := range found {
		bySlug[t.Slug] = t
	}

	tests := make([]models.Test, 0, len(found))
	for _, slug := range unique {
		t, ok := bySlug[slug]
		if !ok {
			result.Unresolved = append(result.Unresolved, slug)
			continue
		}
		tests = append(tests, t)
	}
	return tests, nil
}

// planMembership computes the desired member IDs from the current ones and
// fills result.Added / result.Removed.
func planMembership(mode MembershipMode, existing []uint, requested []models.Test, result *MembershipResult) []uint {
	current := make(map[uint]bool, len(existing))
	for _, id := range existing {
		current[id] = true
	}

	switch mode {
	case MembershipAdd:
		desired := append([]uint{}, existing...)
		for _, t := range requested {
			if current[t.ID] {
				result.Duplicates = append(result.Duplicates, t.Slug)
				continue
			}
			desired = append(desired, t.ID)
			result.Added = append(result.Added, t)
		}
		return desired

	case MembershipRemove:
		drop := make(map[uint]bool, len(requested))
		for _, t := range requested {
			if current[t.ID] {
				drop[t.ID] = true
				result.Removed = append(result.Removed, t)
			}
		}
		desired := make([]uint, 0, len(existing))
		for _, id := range existing {
			if !drop[id] {
				desired = append(desired, id)
			}
		}
		return desired

	default:
		desired := make([]uint, 0, len(requested))
		for _, t := range requested {
			desired = append(desired, t.ID)
		}
		result.Added = append(result.Added, requested...)
		return desired
	}
}

// replaceMembers turns the version's membership from existing into desired
// with one delete and one bulk insert.
func replaceMembers(tx *gorm.DB, versionID uint, existing, desired []uint) error {
	keep := make(map[uint]bool, len(desired))
	for _, id := range desired {
		keep[id] = true
	}
	have := make(map[uint]bool, len(existing))
	var stale []uint
	for _, id := range existing {
		have[id] = true
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	var missing []uint
	for _, id := range desired {
		if !have[id] {
			missing = append(missing, id)
		}
	}

	if len(stale) > 0 {
		if err := tx.Where("test_suite_version_id = ? AND test_id IN ?", versionID, stale).
			Delete(&models.TestSuiteTest{}).Error; err != nil {
			return err
		}
	}
	return insertMembers(tx, versionID, missing)
}

func insertMembers(tx *gorm.DB, versionID uint, testIDs []uint) error {
	if len(testIDs) == 0 {
		return nil
	}
	rows := make([]models.TestSuiteTest, 0, len(testIDs))
	for _, id := range testIDs {
		rows = append(rows, models.TestSuiteTest{TestSuiteVersionID: versionID, TestID: id})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&rows).Error
}
