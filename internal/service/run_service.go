package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/amoshaviv/flow-tester-sub001/internal/dispatch"
	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

// Message types published through a RunNotifier.
const (
	MessageTypeRunStatus      = "run_status"
	MessageTypeAnalysisStatus = "analysis_status"
)

// RunNotifier publishes run updates to live subscribers.
type RunNotifier interface {
	Broadcast(runID string, msgType string, payload interface{})
}

// RunService creates runs, hands them to agents and records their results.
type RunService interface {
	CreateTestRun(ctx context.Context, scope *Scope, testSlug string, req *CreateTestRunRequest) (*models.TestRun, error)
	ListTestRuns(ctx context.Context, scope *Scope, testSlug string, limit, offset int) ([]models.TestRun, int64, error)
	GetTestRun(ctx context.Context, scope *Scope, testSlug, runSlug string) (*models.TestRun, error)

	// CreateSuiteRun runs every member of a suite version. The version's
	// membership is sealed from then on.
	CreateSuiteRun(ctx context.Context, scope *Scope, suiteSlug string, req *CreateSuiteRunRequest) (*models.TestSuiteRun, error)
	ListSuiteRuns(ctx context.Context, scope *Scope, suiteSlug string) ([]models.TestSuiteRun, error)
	GetSuiteRun(ctx context.Context, scope *Scope, suiteSlug, runSlug string) (*models.TestSuiteRun, error)

	ListProjectRuns(ctx context.Context, scope *Scope, limit, offset int) ([]models.TestRun, int64, error)

	// ReportTestRun applies an agent's status report.
	ReportTestRun(ctx context.Context, runSlug string, req *ReportTestRunRequest) (*models.TestRun, error)
}

type runService struct {
	testRepo     repository.TestRepository
	suiteRepo    repository.TestSuiteRepository
	versionRepo  repository.TestSuiteVersionRepository
	runRepo      repository.TestRunRepository
	suiteRunRepo repository.TestSuiteRunRepository
	dispatcher   dispatch.Dispatcher
	notifier     RunNotifier
	logger       *log.Logger
	now          func() time.Time
}

// NewRunService creates the run service. notifier may be nil.
func NewRunService(
	testRepo repository.TestRepository,
	suiteRepo repository.TestSuiteRepository,
	versionRepo repository.TestSuiteVersionRepository,
	runRepo repository.TestRunRepository,
	suiteRunRepo repository.TestSuiteRunRepository,
	dispatcher dispatch.Dispatcher,
	notifier RunNotifier,
	logger *log.Logger,
) RunService {
	return &runService{
		testRepo:     testRepo,
		suiteRepo:    suiteRepo,
		versionRepo:  versionRepo,
		runRepo:      runRepo,
		suiteRunRepo: suiteRunRepo,
		dispatcher:   dispatcher,
		notifier:     notifier,
		logger:       logger.WithPrefix("runs"),
		now:          time.Now,
	}
}

// ===== Request DTOs =====

type CreateTestRunRequest struct {
	ModelSlug string `json:"modelSlug"`
}

type CreateSuiteRunRequest struct {
	VersionSlug string `json:"versionSlug"`
	ModelSlug   string `json:"modelSlug"`
}

// ReportTestRunRequest is an agent's report. An empty status keeps the
// current one and only updates the results.
type ReportTestRunRequest struct {
	Status      models.RunStatus `json:"status"`
	ResultsURL  *string          `json:"resultsUrl"`
	Screenshots []string         `json:"screenshots"`
}

// ===== Implementation =====

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func resolveModel(slug string) (Model, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = DefaultModelSlug
	}
	model, ok := LookupModel(slug)
	if !ok {
		return Model{}, notFound("no valid model provider found for %q", slug)
	}
	return model, nil
}

func (s *runService) loadTest(ctx context.Context, scope *Scope, testSlug string) (*models.Test, error) {
	test, err := s.testRepo.FindBySlugAndProject(ctx, testSlug, scope.Project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test: %w", err)
	}
	if test == nil {
		return nil, notFound("test %q", testSlug)
	}
	return test, nil
}

func (s *runService) loadSuite(ctx context.Context, scope *Scope, suiteSlug string) (*models.TestSuite, error) {
	suite, err := s.suiteRepo.FindBySlugAndProject(ctx, suiteSlug, scope.Project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test suite: %w", err)
	}
	if suite == nil {
		return nil, notFound("test suite %q", suiteSlug)
	}
	return suite, nil
}

func (s *runService) CreateTestRun(ctx context.Context, scope *Scope, testSlug string, req *CreateTestRunRequest) (*models.TestRun, error) {
	model, err := resolveModel(req.ModelSlug)
	if err != nil {
		return nil, err
	}
	test, err := s.loadTest(ctx, scope, testSlug)
	if err != nil {
		return nil, err
	}
	version := test.DefaultVersion()
	if version == nil {
		return nil, notFound("default version of test %q", testSlug)
	}

	run := &models.TestRun{
		Slug:          newSlug(),
		Status:        models.RunStatusPending,
		ModelSlug:     model.Slug,
		ModelProvider: model.Provider,
		TestVersionID: version.ID,
		CreatedByID:   scope.User.ID,
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create test run: %w", err)
	}
	run.TestVersion = version
	run.CreatedBy = scope.User

	s.logger.Info("test run created", "test", test.Slug, "run", run.Slug, "model", model.Slug)
	s.dispatch(ctx, scope, test.Slug, run, "")
	return run, nil
}

func (s *runService) ListTestRuns(ctx context.Context, scope *Scope, testSlug string, limit, offset int) ([]models.TestRun, int64, error) {
	test, err := s.loadTest(ctx, scope, testSlug)
	if err != nil {
		return nil, 0, err
	}
	limit, offset = normalizePage(limit, offset)
	runs, total, err := s.runRepo.ListByTest(ctx, test.ID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list test runs: %w", err)
	}
	return runs, total, nil
}

func (s *runService) GetTestRun(ctx context.Context, scope *Scope, testSlug, runSlug string) (*models.TestRun, error) {
	test, err := s.loadTest(ctx, scope, testSlug)
	if err != nil {
		return nil, err
	}
	run, err := s.runRepo.FindBySlugAndTest(ctx, runSlug, test.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test run: %w", err)
	}
	if run == nil {
		return nil, notFound("test run %q", runSlug)
	}
	return run, nil
}

func (s *runService) CreateSuiteRun(ctx context.Context, scope *Scope, suiteSlug string, req *CreateSuiteRunRequest) (*models.TestSuiteRun, error) {
	suite, err := s.loadSuite(ctx, scope, suiteSlug)
	if err != nil {
		return nil, err
	}

	var version *models.TestSuiteVersion
	if req.VersionSlug != "" {
		version, err = s.versionRepo.FindBySlugAndTestSuite(ctx, req.VersionSlug, suite.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load test suite version: %w", err)
		}
	} else {
		version = suite.DefaultVersion()
	}
	if version == nil {
		return nil, notFound("test suite version %q", req.VersionSlug)
	}

	members, err := s.versionRepo.ListTests(ctx, version.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suite tests: %w", err)
	}
	if len(members) == 0 {
		return nil, notFound("tests in test suite version %q", version.Slug)
	}

	model, err := resolveModel(req.ModelSlug)
	if err != nil {
		return nil, err
	}

	suiteRun := &models.TestSuiteRun{
		Slug:               newSlug(),
		Status:             models.RunStatusPending,
		ModelSlug:          model.Slug,
		ModelProvider:      model.Provider,
		TestSuiteVersionID: version.ID,
		CreatedByID:        scope.User.ID,
	}

	runs := make([]*models.TestRun, 0, len(members))
	testSlugs := make([]string, 0, len(members))
	for i := range members {
		testVersion := members[i].DefaultVersion()
		if testVersion == nil {
			s.logger.Warn("suite member has no default version", "test", members[i].Slug)
			continue
		}
		runs = append(runs, &models.TestRun{
			Slug:          newSlug(),
			Status:        models.RunStatusPending,
			ModelSlug:     model.Slug,
			ModelProvider: model.Provider,
			TestVersionID: testVersion.ID,
			CreatedByID:   scope.User.ID,
			TestVersion:   testVersion,
		})
		testSlugs = append(testSlugs, members[i].Slug)
	}
	if len(runs) == 0 {
		return nil, notFound("runnable tests in test suite version %q", version.Slug)
	}

	if err := s.suiteRunRepo.CreateWithTestRuns(ctx, suiteRun, runs); err != nil {
		return nil, fmt.Errorf("failed to create test suite run: %w", err)
	}

	s.logger.Info("test suite run created",
		"suite", suite.Slug,
		"version", version.Slug,
		"run", suiteRun.Slug,
		"tests", len(runs),
	)

	suiteRun.TestSuiteVersion = version
	suiteRun.CreatedBy = scope.User
	suiteRun.TestRuns = make([]models.TestRun, 0, len(runs))
	for i, run := range runs {
		run.CreatedBy = scope.User
		s.dispatch(ctx, scope, testSlugs[i], run, suiteRun.Slug)
		suiteRun.TestRuns = append(suiteRun.TestRuns, *run)
	}
	return suiteRun, nil
}

// dispatch hands run to the agents. Delivery problems are logged only; the
// run stays pending and can be retried by the agent side.
func (s *runService) dispatch(ctx context.Context, scope *Scope, testSlug string, run *models.TestRun, suiteRunSlug string) {
	task := &dispatch.Task{
		TaskType:         dispatch.TaskTypeTestRun,
		TestRunSlug:      run.Slug,
		TestVersionSlug:  run.TestVersion.Slug,
		TestSlug:         testSlug,
		ProjectSlug:      scope.Project.Slug,
		OrganizationSlug: scope.Organization.Slug,
		TestSuiteRunSlug: suiteRunSlug,
		CreatedAt:        run.CreatedAt,
		UserEmail:        scope.User.Email,
		Task:             run.TestVersion.Description,
		ModelSlug:        run.ModelSlug,
		ModelProvider:    run.ModelProvider,
	}

	payload, err := json.Marshal(task)
	if err == nil {
		if err := s.runRepo.SaveTask(ctx, run.ID, payload); err != nil {
			s.logger.Warn("failed to save task", "run", run.Slug, "error", err)
		}
	}

	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		s.logger.Warn("failed to dispatch run", "run", run.Slug, "error", err)
	}
}

func (s *runService) ListSuiteRuns(ctx context.Context, scope *Scope, suiteSlug string) ([]models.TestSuiteRun, error) {
	suite, err := s.loadSuite(ctx, scope, suiteSlug)
	if err != nil {
		return nil, err
	}
	runs, err := s.suiteRunRepo.ListByTestSuite(ctx, suite.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list test suite runs: %w", err)
	}
	return runs, nil
}

func (s *runService) GetSuiteRun(ctx context.Context, scope *Scope, suiteSlug, runSlug string) (*models.TestSuiteRun, error) {
	suite, err := s.loadSuite(ctx, scope, suiteSlug)
	if err != nil {
		return nil, err
	}
	run, err := s.suiteRunRepo.FindBySlugAndTestSuite(ctx, runSlug, suite.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test suite run: %w", err)
	}
	if run == nil {
		return nil, notFound("test suite run %q", runSlug)
	}
	return run, nil
}

func (s *runService) ListProjectRuns(ctx context.Context, scope *Scope, limit, offset int) ([]models.TestRun, int64, error) {
	limit, offset = normalizePage(limit, offset)
	runs, total, err := s.runRepo.ListByProject(ctx, scope.Project.ID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list project runs: %w", err)
	}
	return runs, total, nil
}

func (s *runService) ReportTestRun(ctx context.Context, runSlug string, req *ReportTestRunRequest) (*models.TestRun, error) {
	run, err := s.runRepo.FindBySlug(ctx, runSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load test run: %w", err)
	}
	if run == nil {
		return nil, notFound("test run %q", runSlug)
	}

	current := run.Status
	if current.IsTerminal() {
		return nil, invalid("test run %q already %s", runSlug, current)
	}

	next := req.Status
	if next == "" {
		next = current
	}
	if next != current && !current.CanTransitionTo(next) {
		return nil, invalid("cannot move test run from %s to %s", current, next)
	}

	now := s.now()
	run.Status = next
	if next != models.RunStatusPending && run.StartedAt == nil {
		run.StartedAt = &now
	}
	if next.IsTerminal() {
		run.FinishedAt = &now
	}
	if req.ResultsURL != nil {
		run.ResultsURL = strings.TrimSpace(*req.ResultsURL)
	}
	if req.Screenshots != nil {
		run.Screenshots = req.Screenshots
	}

	parent, err := s.runRepo.UpdateStatus(ctx, run, current)
	if err != nil {
		if errors.Is(err, repository.ErrStaleRun) {
			return nil, fmt.Errorf("%w: test run %q changed concurrently", ErrConflict, runSlug)
		}
		return nil, fmt.Errorf("failed to update test run: %w", err)
	}
	if parent != nil {
		run.TestSuiteRun = parent
	}

	s.logger.Info("test run reported", "run", run.Slug, "from", current, "to", next)
	s.notify(run, parent)
	return run, nil
}

// RunStatusEvent is the payload of run_status messages.
type RunStatusEvent struct {
	RunSlug      string           `json:"runSlug"`
	Status       models.RunStatus `json:"status"`
	ResultsURL   string           `json:"resultsUrl,omitempty"`
	Screenshots  []string         `json:"screenshots,omitempty"`
	SuiteRunSlug string           `json:"testSuiteRunSlug,omitempty"`
	SuiteStatus  models.RunStatus `json:"testSuiteRunStatus,omitempty"`
}

func (s *runService) notify(run *models.TestRun, parent *models.TestSuiteRun) {
	if s.notifier == nil {
		return
	}
	event := RunStatusEvent{
		RunSlug:     run.Slug,
		Status:      run.Status,
		ResultsURL:  run.ResultsURL,
		Screenshots: run.Screenshots,
	}
	if parent != nil {
		event.SuiteRunSlug = parent.Slug
		event.SuiteStatus = parent.Status
	}

	s.notifier.Broadcast(run.Slug, MessageTypeRunStatus, event)
	if parent != nil {
		s.notifier.Broadcast(parent.Slug, MessageTypeRunStatus, event)
	}
}
