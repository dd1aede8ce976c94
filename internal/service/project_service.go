package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
)

// ProjectService manages projects of an organization.
type ProjectService interface {
	List(ctx context.Context, scope *Scope) ([]models.Project, error)
	Create(ctx context.Context, scope *Scope, req *CreateProjectRequest) (*models.Project, error)
	Update(ctx context.Context, scope *Scope, req *UpdateProjectRequest) (*models.Project, error)
}

type projectService struct {
	projectRepo repository.ProjectRepository
	logger      *log.Logger
}

// NewProjectService creates the project service.
func NewProjectService(projectRepo repository.ProjectRepository, logger *log.Logger) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		logger:      logger.WithPrefix("projects"),
	}
}

type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdateProjectRequest struct {
	Name            string  `json:"name"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

func (s *projectService) List(ctx context.Context, scope *Scope) ([]models.Project, error) {
	projects, err := s.projectRepo.ListByOrganization(ctx, scope.Organization.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (s *projectService) Create(ctx context.Context, scope *Scope, req *CreateProjectRequest) (*models.Project, error) {
	name := strings.TrimSpace(req.Name)
	base := Kebab(name)
	if base == "" {
		return nil, invalid("name must contain letters or digits")
	}

	taken, err := s.projectRepo.SlugsWithPrefix(ctx, scope.Organization.ID, base)
	if err != nil {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}

	project := &models.Project{
		Slug:           UniqueSlug(base, taken),
		Name:           name,
		OrganizationID: scope.Organization.ID,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: project slug %q was taken concurrently", ErrConflict, project.Slug)
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	project.Organization = scope.Organization

	s.logger.Info("project created", "organization", scope.Organization.Slug, "slug", project.Slug)
	return project, nil
}

func (s *projectService) Update(ctx context.Context, scope *Scope, req *UpdateProjectRequest) (*models.Project, error) {
	project := scope.Project
	if name := strings.TrimSpace(req.Name); name != "" {
		project.Name = name
	}
	if req.ProfileImageURL != nil {
		project.ProfileImageURL = strings.TrimSpace(*req.ProfileImageURL)
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}
