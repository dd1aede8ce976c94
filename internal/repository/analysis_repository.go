package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

// AnalysisRepository defines data access for organization analyses.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *models.OrganizationAnalysis) error

	// FindBySlug returns the analysis with its organization preloaded.
	FindBySlug(ctx context.Context, slug string) (*models.OrganizationAnalysis, error)

	// FindBySlugAndOrganization returns the analysis only when it belongs to orgID.
	FindBySlugAndOrganization(ctx context.Context, slug string, orgID uint) (*models.OrganizationAnalysis, error)

	// ListByOrganization returns the organization's analyses, newest first.
	ListByOrganization(ctx context.Context, orgID uint) ([]models.OrganizationAnalysis, error)

	// UpdateStatus saves the report fields provided the stored status still
	// equals expected. Returns ErrStaleRun otherwise.
	UpdateStatus(ctx context.Context, analysis *models.OrganizationAnalysis, expected models.RunStatus) error

	// Delete soft-deletes the analysis.
	Delete(ctx context.Context, analysis *models.OrganizationAnalysis) error
}

type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository creates a new AnalysisRepository instance
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Create(ctx context.Context, analysis *models.OrganizationAnalysis) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(analysis).Error
}

func (r *analysisRepository) FindBySlug(ctx context.Context, slug string) (*models.OrganizationAnalysis, error) {
	return r.first(r.db.WithContext(ctx).Where("slug = ?", slug))
}

func (r *analysisRepository) FindBySlugAndOrganization(ctx context.Context, slug string, orgID uint) (*models.OrganizationAnalysis, error) {
	return r.first(r.db.WithContext(ctx).Where("slug = ? AND organization_id = ?", slug, orgID))
}

func (r *analysisRepository) first(q *gorm.DB) (*models.OrganizationAnalysis, error) {
	var analysis models.OrganizationAnalysis
	err := q.Preload("Organization").Preload("CreatedBy").First(&analysis).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &analysis, nil
}

func (r *analysisRepository) ListByOrganization(ctx context.Context, orgID uint) ([]models.OrganizationAnalysis, error) {
	var analyses []models.OrganizationAnalysis
	err := r.db.WithContext(ctx).
		Preload("CreatedBy").
		Where("organization_id = ?", orgID).
		Order("created_at DESC, id DESC").
		Find(&analyses).Error
	return analyses, err
}

func (r *analysisRepository) UpdateStatus(ctx context.Context, analysis *models.OrganizationAnalysis, expected models.RunStatus) error {
	result := r.db.WithContext(ctx).Model(&models.OrganizationAnalysis{}).
		Where("id = ? AND status = ?", analysis.ID, expected).
		Updates(map[string]interface{}{
			"status":       analysis.Status,
			"analysis_url": analysis.AnalysisURL,
			"started_at":   analysis.StartedAt,
			"finished_at":  analysis.FinishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleRun
	}
	return nil
}

func (r *analysisRepository) Delete(ctx context.Context, analysis *models.OrganizationAnalysis) error {
	return r.db.WithContext(ctx).Delete(&models.OrganizationAnalysis{}, analysis.ID).Error
}
