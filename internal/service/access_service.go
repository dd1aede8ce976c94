package service

import (
	"context"
	"fmt"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
)

// Scope is what the acting user resolved to: an organization they belong to
// and, for project routes, one of its projects.
type Scope struct {
	User         *models.User
	Organization *models.Organization
	Membership   *models.Membership
	Project      *models.Project
}

// CanManage reports whether the user may perform organization-level mutations.
func (s *Scope) CanManage() bool {
	return s.Membership != nil && s.Membership.Role.CanManage()
}

// AccessService resolves path slugs into a Scope for the acting user.
type AccessService interface {
	// Organization fails with ErrNotAuthorized unless user is a member of orgSlug.
	Organization(ctx context.Context, user *models.User, orgSlug string) (*Scope, error)

	// Project additionally resolves projectSlug inside the organization,
	// failing with ErrNotFound when it does not exist.
	Project(ctx context.Context, user *models.User, orgSlug, projectSlug string) (*Scope, error)
}

type accessService struct {
	orgRepo     repository.OrganizationRepository
	projectRepo repository.ProjectRepository
}

// NewAccessService creates the authorization gate.
func NewAccessService(orgRepo repository.OrganizationRepository, projectRepo repository.ProjectRepository) AccessService {
	return &accessService{orgRepo: orgRepo, projectRepo: projectRepo}
}

func (s *accessService) Organization(ctx context.Context, user *models.User, orgSlug string) (*Scope, error) {
	if user == nil {
		return nil, ErrNotAuthorized
	}

	org, membership, err := s.orgRepo.FindBySlugAndUserEmail(ctx, orgSlug, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	if org == nil {
		return nil, ErrNotAuthorized
	}

	return &Scope{User: user, Organization: org, Membership: membership}, nil
}

func (s *accessService) Project(ctx context.Context, user *models.User, orgSlug, projectSlug string) (*Scope, error) {
	scope, err := s.Organization(ctx, user, orgSlug)
	if err != nil {
		return nil, err
	}

	project, err := s.projectRepo.FindBySlugAndOrganizationSlug(ctx, projectSlug, orgSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, notFound("project %q", projectSlug)
	}

	scope.Project = project
	return scope, nil
}
