package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/middleware"
	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

// TestHandler serves tests, their versions and single test runs.
type TestHandler struct {
	tests  service.TestService
	runs   service.RunService
	guard  *Guard
	logger *log.Logger
}

// NewTestHandler creates a new TestHandler
func NewTestHandler(tests service.TestService, runs service.RunService, guard *Guard, logger *log.Logger) *TestHandler {
	return &TestHandler{tests: tests, runs: runs, guard: guard, logger: logger.WithPrefix("handler")}
}

// RegisterRoutes registers test routes
func (h *TestHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2/organizations/:org/projects/:project", h.guard.Project()...)
	{
		api.GET("/tests", h.ListTests)
		api.PUT("/tests", h.CreateTest)
		api.GET("/tests/:test", h.GetTest)
		api.PATCH("/tests/:test", h.UpdateTest)
		api.DELETE("/tests/:test", h.DeleteTest)
		api.PATCH("/tests/:test/versions/:version", h.SetDefaultVersion)

		// Test runs
		api.GET("/tests/:test/runs", h.ListTestRuns)
		api.POST("/tests/:test/runs", h.CreateTestRun)
		api.GET("/tests/:test/runs/:run", h.GetTestRun)
	}
}

// ===== Tests =====

func (h *TestHandler) ListTests(c *gin.Context) {
	tests, err := h.tests.List(c.Request.Context(), middleware.CurrentScope(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  tests,
		"total": len(tests),
	})
}

func (h *TestHandler) CreateTest(c *gin.Context) {
	var req service.TestContentRequest
	if !bindJSON(c, &req) {
		return
	}

	test, version, err := h.tests.Create(c.Request.Context(), middleware.CurrentScope(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	test.Versions = []models.TestVersion{*version}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Test created successfully",
		"test":    test,
	})
}

func (h *TestHandler) GetTest(c *gin.Context) {
	test, err := h.tests.Get(c.Request.Context(), middleware.CurrentScope(c), c.Param("test"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

func (h *TestHandler) UpdateTest(c *gin.Context) {
	var req service.TestContentRequest
	if !bindJSON(c, &req) {
		return
	}

	version, err := h.tests.Update(c.Request.Context(), middleware.CurrentScope(c), c.Param("test"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Test updated successfully",
		"testVersion": version,
	})
}

func (h *TestHandler) DeleteTest(c *gin.Context) {
	if err := h.tests.Delete(c.Request.Context(), middleware.CurrentScope(c), c.Param("test")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test deleted successfully"})
}

func (h *TestHandler) SetDefaultVersion(c *gin.Context) {
	version, err := h.tests.SetDefaultVersion(c.Request.Context(), middleware.CurrentScope(c), c.Param("test"), c.Param("version"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Default version updated successfully",
		"testVersion": version,
	})
}

// ===== Test Runs =====

func (h *TestHandler) ListTestRuns(c *gin.Context) {
	limit, offset := pagination(c)
	runs, total, err := h.runs.ListTestRuns(c.Request.Context(), middleware.CurrentScope(c), c.Param("test"), limit, offset)
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

func (h *TestHandler) CreateTestRun(c *gin.Context) {
	var req service.CreateTestRunRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	run, err := h.runs.CreateTestRun(c.Request.Context(), middleware.CurrentScope(c), c.Param("test"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Test run created successfully",
		"testRun": run,
	})
}

func (h *TestHandler) GetTestRun(c *gin.Context) {
	run, err := h.runs.GetTestRun(c.Request.Context(), middleware.CurrentScope(c), c.Param("test"), c.Param("run"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, run)
}
