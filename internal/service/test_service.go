package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
)

// TestService manages tests and their versions inside a project.
type TestService interface {
	List(ctx context.Context, scope *Scope) ([]models.Test, error)

	// Create adds a test whose first version is the default.
	Create(ctx context.Context, scope *Scope, req *TestContentRequest) (*models.Test, *models.TestVersion, error)

	Get(ctx context.Context, scope *Scope, testSlug string) (*models.Test, error)

	// Update records req as a new default version of the test.
	Update(ctx context.Context, scope *Scope, testSlug string, req *TestContentRequest) (*models.TestVersion, error)

	SetDefaultVersion(ctx context.Context, scope *Scope, testSlug, versionSlug string) (*models.TestVersion, error)
	Delete(ctx context.Context, scope *Scope, testSlug string) error
}

type testService struct {
	testRepo repository.TestRepository
	logger   *log.Logger
}

// NewTestService creates the test service.
func NewTestService(testRepo repository.TestRepository, logger *log.Logger) TestService {
	return &testService{
		testRepo: testRepo,
		logger:   logger.WithPrefix("tests"),
	}
}

// TestContentRequest is the body for creating a test or a new version of it.
type TestContentRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
}

func (r *TestContentRequest) normalize() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	if r.Title == "" || r.Description == "" {
		return invalid("title and description are required")
	}
	return nil
}

func (s *testService) List(ctx context.Context, scope *Scope) ([]models.Test, error) {
	tests, err := s.testRepo.ListByProject(ctx, scope.Project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	return tests, nil
}

func (s *testService) Create(ctx context.Context, scope *Scope, req *TestContentRequest) (*models.Test, *models.TestVersion, error) {
	if err := req.normalize(); err != nil {
		return nil, nil, err
	}

	test := &models.Test{
		Slug:        newSlug(),
		ProjectID:   scope.Project.ID,
		CreatedByID: scope.User.ID,
	}
	version := &models.TestVersion{
		Slug:        newSlug(),
		Title:       req.Title,
		Description: req.Description,
		CreatedByID: scope.User.ID,
	}
	if err := s.testRepo.CreateWithVersion(ctx, test, version); err != nil {
		return nil, nil, fmt.Errorf("failed to create test: %w", err)
	}
	version.CreatedBy = scope.User

	s.logger.Info("test created", "project", scope.Project.Slug, "test", test.Slug)
	return test, version, nil
}

func (s *testService) load(ctx context.Context, scope *Scope, testSlug string) (*models.Test, error) {
	test, err := s.testRepo.FindBySlugAndProject(ctx, testSlug, scope.Project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test: %w", err)
	}
	if test == nil {
		return nil, notFound("test %q", testSlug)
	}
	return test, nil
}

func (s *testService) Get(ctx context.Context, scope *Scope, testSlug string) (*models.Test, error) {
	return s.load(ctx, scope, testSlug)
}

func (s *testService) Update(ctx context.Context, scope *Scope, testSlug string, req *TestContentRequest) (*models.TestVersion, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	test, err := s.load(ctx, scope, testSlug)
	if err != nil {
		return nil, err
	}

	version := &models.TestVersion{
		Slug:        newSlug(),
		Title:       req.Title,
		Description: req.Description,
		CreatedByID: scope.User.ID,
	}
	if err := s.testRepo.AddVersion(ctx, test.ID, version, true); err != nil {
		return nil, fmt.Errorf("failed to create test version: %w", err)
	}
	version.CreatedBy = scope.User

	s.logger.Info("test version created", "test", test.Slug, "number", version.Number)
	return version, nil
}

func (s *testService) SetDefaultVersion(ctx context.Context, scope *Scope, testSlug, versionSlug string) (*models.TestVersion, error) {
	test, err := s.load(ctx, scope, testSlug)
	if err != nil {
		return nil, err
	}

	version, err := s.testRepo.SetDefaultVersion(ctx, test.ID, versionSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to set default version: %w", err)
	}
	if version == nil {
		return nil, notFound("test version %q", versionSlug)
	}
	return version, nil
}

func (s *testService) Delete(ctx context.Context, scope *Scope, testSlug string) error {
	test, err := s.load(ctx, scope, testSlug)
	if err != nil {
		return err
	}
	if err := s.testRepo.Delete(ctx, test.ID); err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}

	s.logger.Info("test deleted", "project", scope.Project.Slug, "test", test.Slug)
	return nil
}
