package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/middleware"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

// AgentHandler receives run and analysis reports from execution agents.
type AgentHandler struct {
	runs     service.RunService
	analyses service.AnalysisService
	token    string
	logger   *log.Logger
}

// NewAgentHandler creates a new AgentHandler accepting token as bearer.
func NewAgentHandler(runs service.RunService, analyses service.AnalysisService, token string, logger *log.Logger) *AgentHandler {
	return &AgentHandler{runs: runs, analyses: analyses, token: token, logger: logger.WithPrefix("agent")}
}

// RegisterRoutes registers agent routes
func (h *AgentHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2/agent", middleware.AgentAuth(h.token))
	{
		api.PATCH("/runs/:run", h.ReportRun)
		api.PATCH("/analyses/:analysis", h.ReportAnalysis)
	}
}

func (h *AgentHandler) ReportRun(c *gin.Context) {
	var req service.ReportTestRunRequest
	if !bindJSON(c, &req) {
		return
	}

	run, err := h.runs.ReportTestRun(c.Request.Context(), c.Param("run"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *AgentHandler) ReportAnalysis(c *gin.Context) {
	var req service.ReportAnalysisRequest
	if !bindJSON(c, &req) {
		return
	}

	analysis, err := h.analyses.Report(c.Request.Context(), c.Param("analysis"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}
