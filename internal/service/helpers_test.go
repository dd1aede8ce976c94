package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/config"
	"github.com/amoshaviv/flow-tester-sub001/internal/dispatch"
	"github.com/amoshaviv/flow-tester-sub001/internal/logger"
	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []*dispatch.Task
	err   error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, task *dispatch.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	return d.err
}

type broadcast struct {
	runID   string
	msgType string
	payload interface{}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []broadcast
}

func (n *recordingNotifier) Broadcast(runID string, msgType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, broadcast{runID, msgType, payload})
}

// env is a fully wired service layer over an in-memory database, with an
// owner signed up and the organization "acme" holding project "shop".
type env struct {
	db         *gorm.DB
	auth       AuthService
	access     AccessService
	orgs       OrganizationService
	projects   ProjectService
	tests      TestService
	suites     SuiteService
	runs       RunService
	analyses   AnalysisService
	dispatcher *recordingDispatcher
	notifier   *recordingNotifier
	owner      *models.User
	scope      *Scope
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	db, err := repository.OpenDatabase(config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	authCfg := config.Default().Auth
	authCfg.BcryptCost = bcrypt.MinCost
	l := logger.Discard()

	userRepo := repository.NewUserRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	testRepo := repository.NewTestRepository(db)
	suiteRepo := repository.NewTestSuiteRepository(db)
	versionRepo := repository.NewTestSuiteVersionRepository(db)
	suiteRunRepo := repository.NewTestSuiteRunRepository(db)

	e := &env{
		db:         db,
		auth:       NewAuthService(userRepo, repository.NewSessionRepository(db), inviteRepo, authCfg, l),
		access:     NewAccessService(orgRepo, projectRepo),
		orgs:       NewOrganizationService(orgRepo, userRepo, inviteRepo, authCfg, l),
		projects:   NewProjectService(projectRepo, l),
		tests:      NewTestService(testRepo, l),
		suites:     NewSuiteService(suiteRepo, versionRepo, suiteRunRepo, l),
		dispatcher: &recordingDispatcher{},
		notifier:   &recordingNotifier{},
	}
	e.runs = NewRunService(
		testRepo, suiteRepo, versionRepo,
		repository.NewTestRunRepository(db),
		suiteRunRepo,
		e.dispatcher, e.notifier, l,
	)
	e.analyses = NewAnalysisService(repository.NewAnalysisRepository(db), e.dispatcher, e.notifier, l)

	e.owner = e.signUp(t, "owner@acme.io")
	_, err = e.orgs.Create(ctx, e.owner, &CreateOrganizationRequest{Name: "Acme", Domain: "acme.io"})
	require.NoError(t, err)

	scope, err := e.access.Organization(ctx, e.owner, "acme")
	require.NoError(t, err)
	_, err = e.projects.Create(ctx, scope, &CreateProjectRequest{Name: "Shop"})
	require.NoError(t, err)

	e.scope, err = e.access.Project(ctx, e.owner, "acme", "shop")
	require.NoError(t, err)
	return e
}

func (e *env) signUp(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := e.auth.SignUp(context.Background(), &SignUpRequest{
		Email:       email,
		Password:    "correct horse",
		DisplayName: email,
	})
	require.NoError(t, err)
	return user
}

// createTest adds a test and renames its slug to slug so scenarios can
// refer to it by name.
func (e *env) createTest(t *testing.T, slug string) *models.Test {
	t.Helper()
	test, _, err := e.tests.Create(context.Background(), e.scope, &TestContentRequest{
		Title:       slug,
		Description: "steps for " + slug,
	})
	require.NoError(t, err)
	require.NoError(t, e.db.Model(test).Update("slug", slug).Error)
	test.Slug = slug
	return test
}

func (e *env) createSuite(t *testing.T, title string) (*models.TestSuite, *models.TestSuiteVersion) {
	t.Helper()
	suite, version, err := e.suites.Create(context.Background(), e.scope, &TestContentRequest{
		Title:       title,
		Description: title + " flow",
	})
	require.NoError(t, err)
	return suite, version
}

func (e *env) versionTests(t *testing.T, suiteSlug, versionSlug string) []string {
	t.Helper()
	members, err := e.suites.ListVersionTests(context.Background(), e.scope, suiteSlug, versionSlug)
	require.NoError(t, err)
	slugs := make([]string, 0, len(members))
	for _, m := range members {
		slugs = append(slugs, m.Slug)
	}
	return slugs
}

func refSlugs(refs []TestRef) []string {
	slugs := make([]string, 0, len(refs))
	for _, r := range refs {
		slugs = append(slugs, r.Slug)
	}
	return slugs
}

func requireKind(t *testing.T, err, kind error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}
