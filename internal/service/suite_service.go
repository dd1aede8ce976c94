package service

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
)

// SuiteService manages test suites, their versions and membership.
type SuiteService interface {
	List(ctx context.Context, scope *Scope) ([]SuiteSummary, error)
	Create(ctx context.Context, scope *Scope, req *TestContentRequest) (*models.TestSuite, *models.TestSuiteVersion, error)
	Get(ctx context.Context, scope *Scope, suiteSlug string) (*SuiteDetail, error)

	// Update records req as a new default version that keeps the current
	// default's membership.
	Update(ctx context.Context, scope *Scope, suiteSlug string, req *TestContentRequest) (*models.TestSuiteVersion, error)

	Delete(ctx context.Context, scope *Scope, suiteSlug string) error

	// CreateVersion adds a new, empty default version.
	CreateVersion(ctx context.Context, scope *Scope, suiteSlug string, req *TestContentRequest) (*models.TestSuite, *models.TestSuiteVersion, error)

	SetDefaultVersion(ctx context.Context, scope *Scope, suiteSlug, versionSlug string) (*models.TestSuiteVersion, error)
	ListVersionTests(ctx context.Context, scope *Scope, suiteSlug, versionSlug string) ([]MemberTest, error)

	// UpdateTests replaces a version's membership. A version that has runs
	// is never modified; the change lands on a new default version instead.
	UpdateTests(ctx context.Context, scope *Scope, suiteSlug string, req *UpdateSuiteTestsRequest) (*MembershipUpdate, error)

	// AddTests and RemoveTests follow the same rule as UpdateTests.
	AddTests(ctx context.Context, scope *Scope, suiteSlug, versionSlug string, testSlugs []string) (*MembershipUpdate, error)
	RemoveTests(ctx context.Context, scope *Scope, suiteSlug, versionSlug string, testSlugs []string) (*MembershipUpdate, error)
}

type suiteService struct {
	suiteRepo    repository.TestSuiteRepository
	versionRepo  repository.TestSuiteVersionRepository
	suiteRunRepo repository.TestSuiteRunRepository
	logger       *log.Logger
}

// NewSuiteService creates the suite service.
func NewSuiteService(
	suiteRepo repository.TestSuiteRepository,
	versionRepo repository.TestSuiteVersionRepository,
	suiteRunRepo repository.TestSuiteRunRepository,
	logger *log.Logger,
) SuiteService {
	return &suiteService{
		suiteRepo:    suiteRepo,
		versionRepo:  versionRepo,
		suiteRunRepo: suiteRunRepo,
		logger:       logger.WithPrefix("suites"),
	}
}

// ===== Request/Response DTOs =====

type UpdateSuiteTestsRequest struct {
	TestSuiteVersionSlug string   `json:"testSuiteVersionSlug" binding:"required"`
	TestSlugs            []string `json:"testSlugs"`
}

type SuiteTestsRequest struct {
	TestSlugs []string `json:"testSlugs"`
}

// TestRef identifies a test in membership responses.
type TestRef struct {
	ID   uint   `json:"id"`
	Slug string `json:"slug"`
}

// MembershipUpdate is the outcome of a membership change.
type MembershipUpdate struct {
	Message          string                   `json:"message"`
	AddedTests       []TestRef                `json:"addedTests"`
	RemovedTests     []TestRef                `json:"removedTests,omitempty"`
	TestSuiteVersion *models.TestSuiteVersion `json:"testSuiteVersion"`
	Forked           bool                     `json:"forked"`
}

// MemberTest is a suite member with the version a run would execute.
type MemberTest struct {
	Slug           string              `json:"slug"`
	DefaultVersion *models.TestVersion `json:"defaultVersion"`
}

// SuiteSummary is one row of the suites listing.
type SuiteSummary struct {
	Slug           string                    `json:"slug"`
	Title          string                    `json:"title"`
	Description    string                    `json:"description"`
	DefaultVersion *models.TestSuiteVersion  `json:"defaultVersion"`
	Versions       []models.TestSuiteVersion `json:"versions"`
	TotalVersions  int                       `json:"totalVersions"`
	Runs           models.RunCounts          `json:"runs"`
	CreatedAt      string                    `json:"createdAt"`
}

// SuiteDetail is a suite with the members of its default version and its runs.
type SuiteDetail struct {
	SuiteSummary
	Tests        []MemberTest                `json:"tests"`
	SuiteRuns    []models.TestSuiteRun       `json:"testSuiteRuns"`
	Project      *models.ProjectSummary      `json:"project"`
	Organization *models.OrganizationSummary `json:"organization"`
}

// ===== Implementation =====

func summarize(suite *models.TestSuite, counts *models.RunCounts) SuiteSummary {
	summary := SuiteSummary{
		Slug:          suite.Slug,
		Versions:      suite.Versions,
		TotalVersions: len(suite.Versions),
		CreatedAt:     suite.CreatedAt.UTC().Format(time.RFC3339),
	}
	if summary.Versions == nil {
		summary.Versions = []models.TestSuiteVersion{}
	}
	if def := suite.DefaultVersion(); def != nil {
		summary.DefaultVersion = def
		summary.Title = def.Title
		summary.Description = def.Description
	}
	if counts != nil {
		summary.Runs = *counts
	}
	return summary
}

func toRefs(tests []models.Test) []TestRef {
	refs := make([]TestRef, 0, len(tests))
	for _, t := range tests {
		refs = append(refs, TestRef{ID: t.ID, Slug: t.Slug})
	}
	return refs
}

func (s *suiteService) load(ctx context.Context, scope *Scope, suiteSlug string) (*models.TestSuite, error) {
	suite, err := s.suiteRepo.FindBySlugAndProject(ctx, suiteSlug, scope.Project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test suite: %w", err)
	}
	if suite == nil {
		return nil, notFound("test suite %q", suiteSlug)
	}
	return suite, nil
}

func (s *suiteService) loadVersion(ctx context.Context, scope *Scope, suiteSlug, versionSlug string) (*models.TestSuite, *models.TestSuiteVersion, error) {
	suite, err := s.load(ctx, scope, suiteSlug)
	if err != nil {
		return nil, nil, err
	}
	version, err := s.versionRepo.FindBySlugAndTestSuite(ctx, versionSlug, suite.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load test suite version: %w", err)
	}
	if version == nil {
		return nil, nil, notFound("test suite version %q", versionSlug)
	}
	return suite, version, nil
}

func (s *suiteService) List(ctx context.Context, scope *Scope) ([]SuiteSummary, error) {
	suites, err := s.suiteRepo.ListByProject(ctx, scope.Project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list test suites: %w", err)
	}

	ids := make([]uint, 0, len(suites))
	for _, suite := range suites {
		ids = append(ids, suite.ID)
	}
	counts, err := s.suiteRepo.RunCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count test suite runs: %w", err)
	}

	summaries := make([]SuiteSummary, 0, len(suites))
	for i := range suites {
		summaries = append(summaries, summarize(&suites[i], counts[suites[i].ID]))
	}
	return summaries, nil
}

func (s *suiteService) Create(ctx context.Context, scope *Scope, req *TestContentRequest) (*models.TestSuite, *models.TestSuiteVersion, error) {
	if err := req.normalize(); err != nil {
		return nil, nil, err
	}

	suite := &models.TestSuite{
		Slug:        newSlug(),
		ProjectID:   scope.Project.ID,
		CreatedByID: scope.User.ID,
	}
	version := &models.TestSuiteVersion{
		Slug:        newSlug(),
		Title:       req.Title,
		Description: req.Description,
		CreatedByID: scope.User.ID,
	}
	if err := s.suiteRepo.CreateWithVersion(ctx, suite, version); err != nil {
		return nil, nil, fmt.Errorf("failed to create test suite: %w", err)
	}
	version.CreatedBy = scope.User

	s.logger.Info("test suite created", "project", scope.Project.Slug, "suite", suite.Slug)
	return suite, version, nil
}

func (s *suiteService) Get(ctx context.Context, scope *Scope, suiteSlug string) (*SuiteDetail, error) {
	suite, err := s.load(ctx, scope, suiteSlug)
	if err != nil {
		return nil, err
	}

	counts, err := s.suiteRepo.RunCounts(ctx, []uint{suite.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to count test suite runs: %w", err)
	}

	detail := &SuiteDetail{
		SuiteSummary: summarize(suite, counts[suite.ID]),
		Tests:        []MemberTest{},
		Project:      scope.Project.Summary(),
		Organization: scope.Organization.Summary(),
	}
	if def := suite.DefaultVersion(); def != nil {
		if detail.Tests, err = s.members(ctx, def.ID); err != nil {
			return nil, err
		}
	}
	if detail.SuiteRuns, err = s.suiteRunRepo.ListByTestSuite(ctx, suite.ID); err != nil {
		return nil, fmt.Errorf("failed to list test suite runs: %w", err)
	}
	return detail, nil
}

func (s *suiteService) members(ctx context.Context, versionID uint) ([]MemberTest, error) {
	tests, err := s.versionRepo.ListTests(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suite tests: %w", err)
	}

	members := make([]MemberTest, 0, len(tests))
	for i := range tests {
		members = append(members, MemberTest{Slug: tests[i].Slug, DefaultVersion: tests[i].DefaultVersion()})
	}
	return members, nil
}

func (s *suiteService) Update(ctx context.Context, scope *Scope, suiteSlug string, req *TestContentRequest) (*models.TestSuiteVersion, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	suite, err := s.load(ctx, scope, suiteSlug)
	if err != nil {
		return nil, err
	}

	var copyFrom *uint
	if def := suite.DefaultVersion(); def != nil {
		copyFrom = &def.ID
	}

	version := &models.TestSuiteVersion{
		Slug:        newSlug(),
		TestSuiteID: suite.ID,
		Title:       req.Title,
		Description: req.Description,
		CreatedByID: scope.User.ID,
	}
	if err := s.versionRepo.CreateWithTestSuite(ctx, version, true, copyFrom); err != nil {
		return nil, fmt.Errorf("failed to create test suite version: %w", err)
	}
	version.CreatedBy = scope.User

	s.logger.Info("test suite updated", "suite", suite.Slug, "number", version.Number)
	return version, nil
}

func (s *suiteService) Delete(ctx context.Context, scope *Scope, suiteSlug string) error {
	suite, err := s.load(ctx, scope, suiteSlug)
	if err != nil {
		return err
	}
	if err := s.suiteRepo.Delete(ctx, suite.ID); err != nil {
		return fmt.Errorf("failed to delete test suite: %w", err)
	}

	s.logger.Info("test suite deleted", "project", scope.Project.Slug, "suite", suite.Slug)
	return nil
}

func (s *suiteService) CreateVersion(ctx context.Context, scope *Scope, suiteSlug string, req *TestContentRequest) (*models.TestSuite, *models.TestSuiteVersion, error) {
	if err := req.normalize(); err != nil {
		return nil, nil, err
	}
	suite, err := s.load(ctx, scope, suiteSlug)
	if err != nil {
		return nil, nil, err
	}

	version := &models.TestSuiteVersion{
		Slug:        newSlug(),
		TestSuiteID: suite.ID,
		Title:       req.Title,
		Description: req.Description,
		CreatedByID: scope.User.ID,
	}
	if err := s.versionRepo.CreateWithTestSuite(ctx, version, true, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to create test suite version: %w", err)
	}
	version.CreatedBy = scope.User

	s.logger.Info("test suite version created", "suite", suite.Slug, "number", version.Number)
	return suite, version, nil
}

func (s *suiteService) SetDefaultVersion(ctx context.Context, scope *Scope, suiteSlug, versionSlug string) (*models.TestSuiteVersion, error) {
	suite, err := s.load(ctx, scope, suiteSlug)
	if err != nil {
		return nil, err
	}

	version, err := s.versionRepo.SetAsDefault(ctx, suite.ID, versionSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to set default version: %w", err)
	}
	if version == nil {
		return nil, notFound("test suite version %q", versionSlug)
	}
	return version, nil
}

func (s *suiteService) ListVersionTests(ctx context.Context, scope *Scope, suiteSlug, versionSlug string) ([]MemberTest, error) {
	_, version, err := s.loadVersion(ctx, scope, suiteSlug, versionSlug)
	if err != nil {
		return nil, err
	}
	return s.members(ctx, version.ID)
}

func (s *suiteService) UpdateTests(ctx context.Context, scope *Scope, suiteSlug string, req *UpdateSuiteTestsRequest) (*MembershipUpdate, error) {
	return s.apply(ctx, scope, suiteSlug, req.TestSuiteVersionSlug, req.TestSlugs, repository.MembershipReplace)
}

func (s *suiteService) AddTests(ctx context.Context, scope *Scope, suiteSlug, versionSlug string, testSlugs []string) (*MembershipUpdate, error) {
	return s.apply(ctx, scope, suiteSlug, versionSlug, testSlugs, repository.MembershipAdd)
}

func (s *suiteService) RemoveTests(ctx context.Context, scope *Scope, suiteSlug, versionSlug string, testSlugs []string) (*MembershipUpdate, error) {
	return s.apply(ctx, scope, suiteSlug, versionSlug, testSlugs, repository.MembershipRemove)
}

func (s *suiteService) apply(ctx context.Context, scope *Scope, suiteSlug, versionSlug string, testSlugs []string, mode repository.MembershipMode) (*MembershipUpdate, error) {
	suite, version, err := s.loadVersion(ctx, scope, suiteSlug, versionSlug)
	if err != nil {
		return nil, err
	}

	result, err := s.versionRepo.ApplyMembership(ctx, repository.MembershipChange{
		VersionID: version.ID,
		ProjectID: scope.Project.ID,
		ActorID:   scope.User.ID,
		TestSlugs: testSlugs,
		Mode:      mode,
		ForkSlug:  newSlug(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update suite membership: %w", err)
	}

	logger := s.logger.With("suite", suite.Slug, "version", version.Slug, "mode", mode)
	for _, slug := range result.Duplicates {
		logger.Warn("duplicate membership ignored", "test", slug)
	}
	if len(result.Unresolved) > 0 {
		logger.Debug("unknown tests skipped", "tests", result.Unresolved)
	}
	if result.Forked {
		logger.Info("sealed version forked", "new_version", result.Version.Slug, "number", result.Version.Number)
	}

	update := &MembershipUpdate{
		AddedTests:       toRefs(result.Added),
		TestSuiteVersion: result.Version,
		Forked:           result.Forked,
	}
	switch mode {
	case repository.MembershipRemove:
		update.Message = "Tests removed from test suite version successfully"
		update.RemovedTests = toRefs(result.Removed)
	default:
		update.Message = "Tests added to test suite version successfully"
	}
	return update, nil
}
