package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/middleware"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

// AnalysisHandler serves website analyses of an organization.
type AnalysisHandler struct {
	analyses service.AnalysisService
	guard    *Guard
	logger   *log.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(analyses service.AnalysisService, guard *Guard, logger *log.Logger) *AnalysisHandler {
	return &AnalysisHandler{analyses: analyses, guard: guard, logger: logger.WithPrefix("handler")}
}

// RegisterRoutes registers analysis routes
func (h *AnalysisHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2/organizations/:org/analyses", h.guard.Organization()...)
	{
		api.GET("", h.ListAnalyses)
		api.POST("", middleware.RequireManager(), h.CreateAnalysis)
		api.GET("/:analysis", h.GetAnalysis)
		api.PATCH("/:analysis", middleware.RequireManager(), h.UpdateAnalysis)
		api.DELETE("/:analysis", middleware.RequireManager(), h.DeleteAnalysis)
	}
}

func (h *AnalysisHandler) ListAnalyses(c *gin.Context) {
	analyses, err := h.analyses.List(c.Request.Context(), middleware.CurrentScope(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analyses": analyses,
		"total":    len(analyses),
	})
}

func (h *AnalysisHandler) CreateAnalysis(c *gin.Context) {
	var req service.CreateAnalysisRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	analysis, err := h.analyses.Create(c.Request.Context(), middleware.CurrentScope(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Analysis created successfully",
		"analysis": analysis,
	})
}

func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	analysis, err := h.analyses.Get(c.Request.Context(), middleware.CurrentScope(c), c.Param("analysis"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

func (h *AnalysisHandler) UpdateAnalysis(c *gin.Context) {
	var req service.ReportAnalysisRequest
	if !bindJSON(c, &req) {
		return
	}

	analysis, err := h.analyses.Update(c.Request.Context(), middleware.CurrentScope(c), c.Param("analysis"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Analysis updated successfully",
		"analysis": analysis,
	})
}

func (h *AnalysisHandler) DeleteAnalysis(c *gin.Context) {
	if err := h.analyses.Delete(c.Request.Context(), middleware.CurrentScope(c), c.Param("analysis")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Analysis deleted successfully"})
}
