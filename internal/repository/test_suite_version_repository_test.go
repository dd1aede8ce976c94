package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

func TestApplyMembership_ReplacesUnrunVersionInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewTestSuiteVersionRepository(f.db)

	f.createTest(t, "login")
	f.createTest(t, "pay")
	f.createTest(t, "refund")
	suite, v1 := f.createSuite(t, "checkout")

	require.NoError(t, repo.AddTestToSuiteVersion(ctx, v1.ID, f.createTest(t, "search").ID))

	result, err := repo.ApplyMembership(ctx, MembershipChange{
		VersionID: v1.ID,
		ProjectID: f.project.ID,
		ActorID:   f.user.ID,
		TestSlugs: []string{"login", "pay"},
		ForkSlug:  uuid.NewString(),
	})
	require.NoError(t, err)

	assert.False(t, result.Forked)
	assert.Equal(t, v1.Slug, result.Version.Slug)
	assert.Equal(t, 1, result.Version.Number)
	assert.Equal(t, []string{"login", "pay"}, testSlugs(result.Added))
	assert.ElementsMatch(t, []string{"login", "pay"}, memberSlugs(t, f.db, v1.ID))

	versions := suiteVersions(t, f.db, suite.ID)
	require.Len(t, versions, 1)
	assert.True(t, versions[0].IsDefault)
}

func TestApplyMembership_ForksSealedVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewTestSuiteVersionRepository(f.db)

	f.createTest(t, "login")
	f.createTest(t, "pay")
	f.createTest(t, "refund")
	suite, v1 := f.createSuite(t, "checkout")

	_, err := repo.ApplyMembership(ctx, MembershipChange{
		VersionID: v1.ID, ProjectID: f.project.ID, ActorID: f.user.ID,
		TestSlugs: []string{"login", "pay"}, ForkSlug: uuid.NewString(),
	})
	require.NoError(t, err)
	f.recordSuiteRun(t, v1.ID)

	forkSlug := uuid.NewString()
	result, err := repo.ApplyMembership(ctx, MembershipChange{
		VersionID: v1.ID, ProjectID: f.project.ID, ActorID: f.user.ID,
		TestSlugs: []string{"refund"}, ForkSlug: forkSlug,
	})
	require.NoError(t, err)

	assert.True(t, result.Forked)
	assert.Equal(t, forkSlug, result.Version.Slug)
	assert.Equal(t, 2, result.Version.Number)
	assert.True(t, result.Version.IsDefault)
	assert.Equal(t, v1.Title, result.Version.Title)
	assert.Equal(t, v1.Description, result.Version.Description)
	assert.Equal(t, f.user.ID, result.Version.CreatedByID)

	assert.ElementsMatch(t, []string{"refund"}, memberSlugs(t, f.db, result.Version.ID))
	assert.ElementsMatch(t, []string{"login", "pay"}, memberSlugs(t, f.db, v1.ID))

	versions := suiteVersions(t, f.db, suite.ID)
	require.Len(t, versions, 2)
	assert.False(t, versions[0].IsDefault)
	assert.True(t, versions[1].IsDefault)
}

func TestApplyMembership_SkipsUnknownAndRepeatedSlugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewTestSuiteVersionRepository(f.db)

	f.createTest(t, "login")
	_, v1 := f.createSuite(t, "checkout")

	// A test of another project must not resolve
	admin := &models.Project{Slug: "admin", Name: "Admin", OrganizationID: f.org.ID}
	require.NoError(t, NewProjectRepository(f.db).Create(ctx, admin))
	(&fixture{db: f.db, user: f.user, org: f.org, project: admin}).createTest(t, "foreign")

	result, err := repo.ApplyMembership(ctx, MembershipChange{
		VersionID: v1.ID, ProjectID: f.project.ID, ActorID: f.user.ID,
		TestSlugs: []string{"login", "ghost", "login", "foreign"},
		ForkSlug:  uuid.NewString(),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"login"}, testSlugs(result.Added))
	assert.Equal(t, []string{"ghost", "foreign"}, result.Unresolved)
	assert.Equal(t, []string{"login"}, result.Duplicates)
	assert.Equal(t, []string{"login"}, memberSlugs(t, f.db, v1.ID))
}

func TestApplyMembership_AddReportsExistingMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewTestSuiteVersionRepository(f.db)

	login := f.createTest(t, "login")
	f.createTest(t, "pay")
	_, v1 := f.createSuite(t, "checkout")
	require.NoError(t, repo.AddTestToSuiteVersion(ctx, v1.ID, login.ID))

	result, err := repo.ApplyMembership(ctx, MembershipChange{
		VersionID: v1.ID, ProjectID: f.project.ID, ActorID: f.user.ID,
		TestSlugs: []string{"login", "pay"}, Mode: MembershipAdd,
		ForkSlug: uuid.NewString(),
	})
	require.NoError(t, err)

	assert.False(t, result.Forked)
	assert.Equal(t, []string{"pay"}, testSlugs(result.Added))
	assert.Equal(t, []string{"login"}, result.Duplicates)
	assert.Equal(t, []string{"login", "pay"}, memberSlugs(t, f.db, v1.ID))
}

func TestApplyMembership_RemoveOnSealedVersionForks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewTestSuiteVersionRepository(f.db)

	login := f.createTest(t, "login")
	pay := f.createTest(t, "pay")
	_, v1 := f.createSuite(t, "checkout")
	require.NoError(t, repo.AddTestToSuiteVersion(ctx, v1.ID, login.ID))
	require.NoError(t, repo.AddTestToSuiteVersion(ctx, v1.ID, pay.ID))
	f.recordSuiteRun(t, v1.ID)

	result, err := repo.ApplyMembership(ctx, MembershipChange{
		VersionID: v1.ID, ProjectID: f.project.ID, ActorID: f.user.ID,
		TestSlugs: []string{"pay", "ghost"}, Mode: MembershipRemove,
		ForkSlug: uuid.NewString(),
	})
	require.NoError(t, err)

	assert.True(t, result.Forked)
	assert.Equal(t, []string{"pay"}, testSlugs(result.Removed))
	assert.Equal(t, []string{"login"}, memberSlugs(t, f.db, result.Version.ID))
	assert.Equal(t, []string{"login", "pay"}, memberSlugs(t, f.db, v1.ID))
}

func TestAddTestToSuiteVersion_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewTestSuiteVersionRepository(f.db)

	login := f.createTest(t, "login")
	_, v1 := f.createSuite(t, "checkout")

	require.NoError(t, repo.AddTestToSuiteVersion(ctx, v1.ID, login.ID))
	assert.ErrorIs(t, repo.AddTestToSuiteVersion(ctx, v1.ID, login.ID), ErrDuplicateMembership)
	assert.Equal(t, []string{"login"}, memberSlugs(t, f.db, v1.ID))
}

func TestCreateWithTestSuite_CopiesMembershipAndSwapsDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewTestSuiteVersionRepository(f.db)

	login := f.createTest(t, "login")
	suite, v1 := f.createSuite(t, "checkout")
	require.NoError(t, repo.AddTestToSuiteVersion(ctx, v1.ID, login.ID))

	v2 := &models.TestSuiteVersion{Slug: uuid.NewString(), TestSuiteID: suite.ID, Title: "Checkout v2", Description: "new", CreatedByID: f.user.ID}
	require.NoError(t, repo.CreateWithTestSuite(ctx, v2, true, &v1.ID))

	assert.Equal(t, 2, v2.Number)
	assert.Equal(t, []string{"login"}, memberSlugs(t, f.db, v2.ID))

	versions := suiteVersions(t, f.db, suite.ID)
	require.Len(t, versions, 2)
	assert.False(t, versions[0].IsDefault)
	assert.True(t, versions[1].IsDefault)

	v3 := &models.TestSuiteVersion{Slug: uuid.NewString(), TestSuiteID: suite.ID, Title: "draft", Description: "x", CreatedByID: f.user.ID}
	require.NoError(t, repo.CreateWithTestSuite(ctx, v3, false, nil))
	assert.Equal(t, 3, v3.Number)
	assert.Empty(t, memberSlugs(t, f.db, v3.ID))

	current, err := NewTestSuiteRepository(f.db).FindBySlugAndProject(ctx, suite.Slug, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.Slug, current.DefaultVersion().Slug)
}

func TestSetAsDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewTestSuiteVersionRepository(f.db)

	suite, v1 := f.createSuite(t, "checkout")
	v2 := &models.TestSuiteVersion{Slug: uuid.NewString(), TestSuiteID: suite.ID, Title: "t", Description: "d", CreatedByID: f.user.ID}
	require.NoError(t, repo.CreateWithTestSuite(ctx, v2, true, nil))

	found, err := repo.SetAsDefault(ctx, suite.ID, v1.Slug)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.IsDefault)

	// Unknown slug rolls back and keeps the current default
	missing, err := repo.SetAsDefault(ctx, suite.ID, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	versions := suiteVersions(t, f.db, suite.ID)
	assert.True(t, versions[0].IsDefault)
	assert.False(t, versions[1].IsDefault)
}

func TestApplyMembership_NoOpEditOnSealedVersionKeepsVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewTestSuiteVersionRepository(f.db)

	login := f.createTest(t, "login")
	suite, v1 := f.createSuite(t, "checkout")
	require.NoError(t, repo.AddTestToSuiteVersion(ctx, v1.ID, login.ID))
	f.recordSuiteRun(t, v1.ID)

	tests := []struct {
		name  string
		mode  MembershipMode
		slugs []string
	}{
		{name: "re-add existing member", mode: MembershipAdd, slugs: []string{"login"}},
		{name: "remove non-member", mode: MembershipRemove, slugs: []string{"nope"}},
		{name: "empty add", mode: MembershipAdd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.ApplyMembership(ctx, MembershipChange{
				VersionID: v1.ID, ProjectID: f.project.ID, ActorID: f.user.ID,
				TestSlugs: tt.slugs, Mode: tt.mode, ForkSlug: uuid.NewString(),
			})
			require.NoError(t, err)

			assert.False(t, result.Forked)
			assert.Equal(t, v1.Slug, result.Version.Slug)
			assert.Empty(t, result.Added)
			assert.Empty(t, result.Removed)
			assert.Equal(t, []string{"login"}, memberSlugs(t, f.db, v1.ID))

			versions := suiteVersions(t, f.db, suite.ID)
			require.Len(t, versions, 1)
			assert.True(t, versions[0].IsDefault)
		})
	}
}
