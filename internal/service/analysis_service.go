package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/amoshaviv/flow-tester-sub001/internal/dispatch"
	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
)

// AnalysisService runs website analyses of an organization's domain.
type AnalysisService interface {
	List(ctx context.Context, scope *Scope) ([]models.OrganizationAnalysis, error)

	// Create queues a new analysis for an agent. Owners and admins only.
	Create(ctx context.Context, scope *Scope, req *CreateAnalysisRequest) (*models.OrganizationAnalysis, error)
	Get(ctx context.Context, scope *Scope, slug string) (*models.OrganizationAnalysis, error)

	// Update applies a status change from a manager, following the same
	// transitions an agent report does.
	Update(ctx context.Context, scope *Scope, slug string, req *ReportAnalysisRequest) (*models.OrganizationAnalysis, error)
	Delete(ctx context.Context, scope *Scope, slug string) error

	// Report applies an agent's report.
	Report(ctx context.Context, slug string, req *ReportAnalysisRequest) (*models.OrganizationAnalysis, error)
}

type analysisService struct {
	repo       repository.AnalysisRepository
	dispatcher dispatch.Dispatcher
	notifier   RunNotifier
	logger     *log.Logger
	now        func() time.Time
}

// NewAnalysisService creates the analysis service. notifier may be nil.
func NewAnalysisService(
	repo repository.AnalysisRepository,
	dispatcher dispatch.Dispatcher,
	notifier RunNotifier,
	logger *log.Logger,
) AnalysisService {
	return &analysisService{
		repo:       repo,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger.WithPrefix("analyses"),
		now:        time.Now,
	}
}

type CreateAnalysisRequest struct {
	ModelSlug string `json:"modelSlug"`
}

// ReportAnalysisRequest moves an analysis along. An empty status keeps the
// current one and only updates the report URL.
type ReportAnalysisRequest struct {
	Status      models.RunStatus `json:"status"`
	AnalysisURL *string          `json:"analysisUrl"`
}

// AnalysisStatusEvent is the payload of analysis_status messages.
type AnalysisStatusEvent struct {
	AnalysisSlug string           `json:"analysisSlug"`
	Status       models.RunStatus `json:"status"`
	AnalysisURL  string           `json:"analysisUrl,omitempty"`
}

func validReportURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalid("analysis url %q is not a valid http(s) url", raw)
	}
	return raw, nil
}

func (s *analysisService) List(ctx context.Context, scope *Scope) ([]models.OrganizationAnalysis, error) {
	analyses, err := s.repo.ListByOrganization(ctx, scope.Organization.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}

func (s *analysisService) Create(ctx context.Context, scope *Scope, req *CreateAnalysisRequest) (*models.OrganizationAnalysis, error) {
	if !scope.CanManage() {
		return nil, ErrNotAuthorized
	}
	model, err := resolveModel(req.ModelSlug)
	if err != nil {
		return nil, err
	}

	analysis := &models.OrganizationAnalysis{
		Slug:           newSlug(),
		Status:         models.RunStatusPending,
		ModelSlug:      model.Slug,
		ModelProvider:  model.Provider,
		OrganizationID: scope.Organization.ID,
		CreatedByID:    scope.User.ID,
	}
	if err := s.repo.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("failed to create analysis: %w", err)
	}
	analysis.Organization = scope.Organization
	analysis.CreatedBy = scope.User

	s.logger.Info("analysis created", "organization", scope.Organization.Slug, "analysis", analysis.Slug, "model", model.Slug)

	task := &dispatch.Task{
		TaskType:           dispatch.TaskTypeAnalysis,
		AnalysisSlug:       analysis.Slug,
		OrganizationSlug:   scope.Organization.Slug,
		OrganizationDomain: scope.Organization.Domain,
		CreatedAt:          analysis.CreatedAt,
		UserEmail:          scope.User.Email,
		ModelSlug:          analysis.ModelSlug,
		ModelProvider:      analysis.ModelProvider,
	}
	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		s.logger.Warn("failed to dispatch analysis", "analysis", analysis.Slug, "error", err)
	}
	return analysis, nil
}

func (s *analysisService) Get(ctx context.Context, scope *Scope, slug string) (*models.OrganizationAnalysis, error) {
	analysis, err := s.repo.FindBySlugAndOrganization(ctx, slug, scope.Organization.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}
	if analysis == nil {
		return nil, notFound("analysis %q", slug)
	}
	return analysis, nil
}

func (s *analysisService) Update(ctx context.Context, scope *Scope, slug string, req *ReportAnalysisRequest) (*models.OrganizationAnalysis, error) {
	if !scope.CanManage() {
		return nil, ErrNotAuthorized
	}
	analysis, err := s.Get(ctx, scope, slug)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, analysis, req)
}

func (s *analysisService) Delete(ctx context.Context, scope *Scope, slug string) error {
	if !scope.CanManage() {
		return ErrNotAuthorized
	}
	analysis, err := s.Get(ctx, scope, slug)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, analysis); err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	s.logger.Info("analysis deleted", "organization", scope.Organization.Slug, "analysis", slug)
	return nil
}

func (s *analysisService) Report(ctx context.Context, slug string, req *ReportAnalysisRequest) (*models.OrganizationAnalysis, error) {
	analysis, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}
	if analysis == nil {
		return nil, notFound("analysis %q", slug)
	}
	return s.apply(ctx, analysis, req)
}

// apply follows the run lifecycle. A succeeded analysis must carry a report URL.
func (s *analysisService) apply(ctx context.Context, analysis *models.OrganizationAnalysis, req *ReportAnalysisRequest) (*models.OrganizationAnalysis, error) {
	current := analysis.Status
	if current.IsTerminal() {
		return nil, invalid("analysis %q already %s", analysis.Slug, current)
	}

	next := req.Status
	if next == "" {
		next = current
	}
	if next != current && !current.CanTransitionTo(next) {
		return nil, invalid("cannot move analysis from %s to %s", current, next)
	}

	if req.AnalysisURL != nil {
		u, err := validReportURL(*req.AnalysisURL)
		if err != nil {
			return nil, err
		}
		analysis.AnalysisURL = u
	}
	if next == models.RunStatusSucceeded && analysis.AnalysisURL == "" {
		return nil, invalid("a succeeded analysis needs an analysis url")
	}

	now := s.now()
	analysis.Status = next
	if next != models.RunStatusPending && analysis.StartedAt == nil {
		analysis.StartedAt = &now
	}
	if next.IsTerminal() {
		analysis.FinishedAt = &now
	}

	if err := s.repo.UpdateStatus(ctx, analysis, current); err != nil {
		if errors.Is(err, repository.ErrStaleRun) {
			return nil, fmt.Errorf("%w: analysis %q changed concurrently", ErrConflict, analysis.Slug)
		}
		return nil, fmt.Errorf("failed to update analysis: %w", err)
	}

	s.logger.Info("analysis reported", "analysis", analysis.Slug, "from", current, "to", next)
	if s.notifier != nil {
		s.notifier.Broadcast(analysis.Slug, MessageTypeAnalysisStatus, AnalysisStatusEvent{
			AnalysisSlug: analysis.Slug,
			Status:       analysis.Status,
			AnalysisURL:  analysis.AnalysisURL,
		})
	}
	return analysis, nil
}
