package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

// ProjectRepository defines data access for projects.
type ProjectRepository interface {
	// Create returns gorm.ErrDuplicatedKey when the slug is taken in the organization.
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project) error

	// FindBySlugAndOrganizationSlug resolves a project through its organization's slug.
	FindBySlugAndOrganizationSlug(ctx context.Context, slug, orgSlug string) (*models.Project, error)

	ListByOrganization(ctx context.Context, orgID uint) ([]models.Project, error)

	// SlugsWithPrefix returns the organization's project slugs starting with prefix.
	SlugsWithPrefix(ctx context.Context, orgID uint, prefix string) ([]string, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository instance
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Omit("Organization").Create(project).Error
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Omit("Organization").Save(project).Error
}

func (r *projectRepository) FindBySlugAndOrganizationSlug(ctx context.Context, slug, orgSlug string) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).
		Preload("Organization").
		Joins("JOIN organizations ON organizations.id = projects.organization_id").
		Where("projects.slug = ? AND organizations.slug = ?", slug, orgSlug).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) ListByOrganization(ctx context.Context, orgID uint) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("name ASC").
		Find(&projects).Error
	return projects, err
}

func (r *projectRepository) SlugsWithPrefix(ctx context.Context, orgID uint, prefix string) ([]string, error) {
	var slugs []string
	err := r.db.WithContext(ctx).Model(&models.Project{}).
		Where("organization_id = ? AND slug LIKE ?", orgID, prefix+"%").
		Pluck("slug", &slugs).Error
	return slugs, err
}
