package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/middleware"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

// OrganizationHandler serves organizations, their members and projects.
type OrganizationHandler struct {
	orgs     service.OrganizationService
	projects service.ProjectService
	runs     service.RunService
	guard    *Guard
	logger   *log.Logger
}

// NewOrganizationHandler creates a new OrganizationHandler
func NewOrganizationHandler(
	orgs service.OrganizationService,
	projects service.ProjectService,
	runs service.RunService,
	guard *Guard,
	logger *log.Logger,
) *OrganizationHandler {
	return &OrganizationHandler{
		orgs:     orgs,
		projects: projects,
		runs:     runs,
		guard:    guard,
		logger:   logger.WithPrefix("handler"),
	}
}

// RegisterRoutes registers organization and project routes
func (h *OrganizationHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2", h.guard.Session()...)
	{
		api.GET("/organizations", h.ListOrganizations)
		api.POST("/organizations", h.CreateOrganization)
	}

	org := r.Group("/api/v2/organizations/:org", h.guard.Organization()...)
	{
		org.GET("", h.GetOrganization)
		org.PATCH("", h.UpdateOrganization)
		org.GET("/users", h.ListMembers)
		org.POST("/users", h.AddMember)
		org.GET("/projects", h.ListProjects)
		org.PUT("/projects", middleware.RequireManager(), h.CreateProject)
	}

	project := r.Group("/api/v2/organizations/:org/projects/:project", h.guard.Project()...)
	{
		project.GET("", h.GetProject)
		project.PATCH("", middleware.RequireManager(), h.UpdateProject)
		project.GET("/runs", h.ListProjectRuns)
	}
}

// ===== Organizations =====

func (h *OrganizationHandler) ListOrganizations(c *gin.Context) {
	views, err := h.orgs.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  views,
		"total": len(views),
	})
}

func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	var req service.CreateOrganizationRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.orgs.Create(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, org)
}

func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	scope := middleware.CurrentScope(c)
	c.JSON(http.StatusOK, service.OrganizationView{
		Organization: scope.Organization,
		Role:         scope.Membership.Role,
	})
}

func (h *OrganizationHandler) UpdateOrganization(c *gin.Context) {
	var req service.UpdateOrganizationRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.orgs.Update(c.Request.Context(), middleware.CurrentScope(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (h *OrganizationHandler) ListMembers(c *gin.Context) {
	members, err := h.orgs.ListMembers(c.Request.Context(), middleware.CurrentScope(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  members,
		"total": len(members),
	})
}

func (h *OrganizationHandler) AddMember(c *gin.Context) {
	var req service.AddMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.orgs.AddMember(c.Request.Context(), middleware.CurrentScope(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ===== Projects =====

func (h *OrganizationHandler) ListProjects(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context(), middleware.CurrentScope(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  projects,
		"total": len(projects),
	})
}

func (h *OrganizationHandler) CreateProject(c *gin.Context) {
	var req service.CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projects.Create(c.Request.Context(), middleware.CurrentScope(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

func (h *OrganizationHandler) GetProject(c *gin.Context) {
	scope := middleware.CurrentScope(c)
	c.JSON(http.StatusOK, gin.H{
		"project":      scope.Project,
		"organization": scope.Organization.Summary(),
	})
}

func (h *OrganizationHandler) UpdateProject(c *gin.Context) {
	var req service.UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projects.Update(c.Request.Context(), middleware.CurrentScope(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

func (h *OrganizationHandler) ListProjectRuns(c *gin.Context) {
	limit, offset := pagination(c)
	runs, total, err := h.runs.ListProjectRuns(c.Request.Context(), middleware.CurrentScope(c), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   runs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
