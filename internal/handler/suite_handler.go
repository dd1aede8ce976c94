package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/middleware"
	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

// SuiteHandler serves test suites, their versions, membership and runs.
type SuiteHandler struct {
	suites service.SuiteService
	runs   service.RunService
	guard  *Guard
	logger *log.Logger
}

// NewSuiteHandler creates a new SuiteHandler
func NewSuiteHandler(suites service.SuiteService, runs service.RunService, guard *Guard, logger *log.Logger) *SuiteHandler {
	return &SuiteHandler{suites: suites, runs: runs, guard: guard, logger: logger.WithPrefix("handler")}
}

// RegisterRoutes registers test suite routes
func (h *SuiteHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2/organizations/:org/projects/:project", h.guard.Project()...)
	{
		api.GET("/suites", h.ListSuites)
		api.PUT("/suites", h.CreateSuite)
		api.GET("/suites/:suite", h.GetSuite)
		api.PATCH("/suites/:suite", h.UpdateSuite)
		api.DELETE("/suites/:suite", h.DeleteSuite)

		// Versions and membership
		api.PUT("/suites/:suite/versions", h.CreateVersion)
		api.PATCH("/suites/:suite/versions/:version", h.SetDefaultVersion)
		api.PATCH("/suites/:suite/tests", h.UpdateTests)
		api.GET("/suites/:suite/versions/:version/tests", h.ListVersionTests)
		api.POST("/suites/:suite/versions/:version/tests", h.AddTests)
		api.DELETE("/suites/:suite/versions/:version/tests", h.RemoveTests)

		// Suite runs
		api.GET("/suites/:suite/runs", h.ListSuiteRuns)
		api.POST("/suites/:suite/runs", h.CreateSuiteRun)
		api.GET("/suites/:suite/runs/:run", h.GetSuiteRun)
	}
}

// versionView is the short version shape returned by version creation.
type versionView struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Number      int    `json:"number"`
	IsDefault   bool   `json:"isDefault"`
}

func viewOf(v *models.TestSuiteVersion) versionView {
	return versionView{
		Slug:        v.Slug,
		Title:       v.Title,
		Description: v.Description,
		Number:      v.Number,
		IsDefault:   v.IsDefault,
	}
}

// ===== Suites =====

func (h *SuiteHandler) ListSuites(c *gin.Context) {
	suites, err := h.suites.List(c.Request.Context(), middleware.CurrentScope(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  suites,
		"total": len(suites),
	})
}

func (h *SuiteHandler) CreateSuite(c *gin.Context) {
	var req service.TestContentRequest
	if !bindJSON(c, &req) {
		return
	}

	suite, version, err := h.suites.Create(c.Request.Context(), middleware.CurrentScope(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	suite.Versions = []models.TestSuiteVersion{*version}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Test suite created successfully",
		"testSuite": suite,
	})
}

func (h *SuiteHandler) GetSuite(c *gin.Context) {
	detail, err := h.suites.Get(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *SuiteHandler) UpdateSuite(c *gin.Context) {
	var req service.TestContentRequest
	if !bindJSON(c, &req) {
		return
	}

	version, err := h.suites.Update(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "Test suite updated successfully",
		"testSuiteVersion": version,
	})
}

func (h *SuiteHandler) DeleteSuite(c *gin.Context) {
	if err := h.suites.Delete(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test suite deleted successfully"})
}

// ===== Versions and Membership =====

func (h *SuiteHandler) CreateVersion(c *gin.Context) {
	var req service.TestContentRequest
	if !bindJSON(c, &req) {
		return
	}

	scope := middleware.CurrentScope(c)
	suite, version, err := h.suites.CreateVersion(c.Request.Context(), scope, c.Param("suite"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":          "Test suite version created successfully",
		"testSuiteVersion": viewOf(version),
		"testSuite":        gin.H{"slug": suite.Slug},
		"project":          scope.Project.Summary(),
		"organization":     scope.Organization.Summary(),
	})
}

func (h *SuiteHandler) SetDefaultVersion(c *gin.Context) {
	version, err := h.suites.SetDefaultVersion(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite"), c.Param("version"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "Default version updated successfully",
		"testSuiteVersion": version,
	})
}

func (h *SuiteHandler) UpdateTests(c *gin.Context) {
	var req service.UpdateSuiteTestsRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.suites.UpdateTests(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *SuiteHandler) ListVersionTests(c *gin.Context) {
	tests, err := h.suites.ListVersionTests(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite"), c.Param("version"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  tests,
		"total": len(tests),
	})
}

func (h *SuiteHandler) AddTests(c *gin.Context) {
	var req service.SuiteTestsRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.suites.AddTests(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite"), c.Param("version"), req.TestSlugs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *SuiteHandler) RemoveTests(c *gin.Context) {
	var req service.SuiteTestsRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.suites.RemoveTests(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite"), c.Param("version"), req.TestSlugs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ===== Suite Runs =====

func (h *SuiteHandler) ListSuiteRuns(c *gin.Context) {
	runs, err := h.runs.ListSuiteRuns(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  runs,
		"total": len(runs),
	})
}

func (h *SuiteHandler) CreateSuiteRun(c *gin.Context) {
	var req service.CreateSuiteRunRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	run, err := h.runs.CreateSuiteRun(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "Test suite run created successfully",
		"testSuiteRun": run,
	})
}

func (h *SuiteHandler) GetSuiteRun(c *gin.Context) {
	run, err := h.runs.GetSuiteRun(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite"), c.Param("run"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, run)
}
