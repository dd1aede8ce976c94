package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/config"
	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDatabase(config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// fixture is a user owning an organization with one project.
type fixture struct {
	db      *gorm.DB
	user    *models.User
	org     *models.Organization
	project *models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := setupTestDB(t)

	user := &models.User{Email: "ada@example.com", DisplayName: "Ada", PasswordHash: "x"}
	require.NoError(t, NewUserRepository(db).Create(ctx, user))

	org := &models.Organization{Slug: "acme", Name: "Acme", Domain: "acme.test"}
	require.NoError(t, NewOrganizationRepository(db).CreateWithOwner(ctx, org, user.ID))

	project := &models.Project{Slug: "shop", Name: "Shop", OrganizationID: org.ID}
	require.NoError(t, NewProjectRepository(db).Create(ctx, project))

	return &fixture{db: db, user: user, org: org, project: project}
}

func (f *fixture) createTest(t *testing.T, slug string) *models.Test {
	t.Helper()
	test := &models.Test{Slug: slug, ProjectID: f.project.ID, CreatedByID: f.user.ID}
	version := &models.TestVersion{
		Slug:        uuid.NewString(),
		Title:       slug,
		Description: "steps for " + slug,
		CreatedByID: f.user.ID,
	}
	require.NoError(t, NewTestRepository(f.db).CreateWithVersion(context.Background(), test, version))
	return test
}

func (f *fixture) createSuite(t *testing.T, slug string) (*models.TestSuite, *models.TestSuiteVersion) {
	t.Helper()
	suite := &models.TestSuite{Slug: slug, ProjectID: f.project.ID, CreatedByID: f.user.ID}
	version := &models.TestSuiteVersion{
		Slug:        uuid.NewString(),
		Title:       slug,
		Description: slug + " flow",
		CreatedByID: f.user.ID,
	}
	require.NoError(t, NewTestSuiteRepository(f.db).CreateWithVersion(context.Background(), suite, version))
	return suite, version
}

func (f *fixture) recordSuiteRun(t *testing.T, versionID uint) *models.TestSuiteRun {
	t.Helper()
	run := &models.TestSuiteRun{
		Slug:               uuid.NewString(),
		Status:             models.RunStatusPending,
		TestSuiteVersionID: versionID,
		CreatedByID:        f.user.ID,
	}
	require.NoError(t, NewTestSuiteRunRepository(f.db).CreateWithTestRuns(context.Background(), run, nil))
	return run
}

func memberSlugs(t *testing.T, db *gorm.DB, versionID uint) []string {
	t.Helper()
	tests, err := NewTestSuiteVersionRepository(db).ListTests(context.Background(), versionID)
	require.NoError(t, err)
	slugs := make([]string, 0, len(tests))
	for _, test := range tests {
		slugs = append(slugs, test.Slug)
	}
	return slugs
}

func suiteVersions(t *testing.T, db *gorm.DB, suiteID uint) []models.TestSuiteVersion {
	t.Helper()
	var versions []models.TestSuiteVersion
	require.NoError(t, db.Where("test_suite_id = ?", suiteID).Order("number ASC").Find(&versions).Error)
	return versions
}

func testSlugs(tests []models.Test) []string {
	slugs := make([]string, 0, len(tests))
	for _, test := range tests {
		slugs = append(slugs, test.Slug)
	}
	return slugs
}
