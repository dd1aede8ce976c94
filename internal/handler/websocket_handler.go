package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/amoshaviv/flow-tester-sub001/internal/middleware"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
	"github.com/amoshaviv/flow-tester-sub001/internal/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// sessions are checked before the upgrade
		return true
	},
}

// WebSocketHandler streams run status changes to browsers.
type WebSocketHandler struct {
	hub    *websocket.Hub
	runs   service.RunService
	guard  *Guard
	logger *log.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *websocket.Hub, runs service.RunService, guard *Guard, logger *log.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, runs: runs, guard: guard, logger: logger.WithPrefix("stream")}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2/organizations/:org/projects/:project", h.guard.Project()...)
	{
		api.GET("/tests/:test/runs/:run/stream", h.StreamTestRun)
		api.GET("/suites/:suite/runs/:run/stream", h.StreamSuiteRun)
	}
}

// StreamTestRun establishes WebSocket connection for a test run
func (h *WebSocketHandler) StreamTestRun(c *gin.Context) {
	run, err := h.runs.GetTestRun(c.Request.Context(), middleware.CurrentScope(c), c.Param("test"), c.Param("run"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.stream(c, run.Slug)
}

// StreamSuiteRun establishes WebSocket connection for a suite run
func (h *WebSocketHandler) StreamSuiteRun(c *gin.Context) {
	run, err := h.runs.GetSuiteRun(c.Request.Context(), middleware.CurrentScope(c), c.Param("suite"), c.Param("run"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.stream(c, run.Slug)
}

func (h *WebSocketHandler) stream(c *gin.Context, runSlug string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the client
		h.logger.Warn("websocket upgrade failed", "run", runSlug, "error", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, runSlug)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
