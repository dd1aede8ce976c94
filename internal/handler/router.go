package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/config"
	"github.com/amoshaviv/flow-tester-sub001/internal/middleware"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
	"github.com/amoshaviv/flow-tester-sub001/internal/websocket"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "flow-tester"

// Services bundles what the HTTP layer depends on.
type Services struct {
	Auth     service.AuthService
	Access   service.AccessService
	Orgs     service.OrganizationService
	Projects service.ProjectService
	Tests    service.TestService
	Suites   service.SuiteService
	Runs     service.RunService
	Analyses service.AnalysisService
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc Services, hub *websocket.Hub, cfg *config.Config, logger *log.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS())

	guard := NewGuard(svc.Auth, svc.Access, cfg.Auth.CookieName)

	handlers := []interface{ RegisterRoutes(*gin.Engine) }{
		NewAuthHandler(svc.Auth, guard, cfg.Auth, logger),
		NewOrganizationHandler(svc.Orgs, svc.Projects, svc.Runs, guard, logger),
		NewTestHandler(svc.Tests, svc.Runs, guard, logger),
		NewSuiteHandler(svc.Suites, svc.Runs, guard, logger),
		NewAnalysisHandler(svc.Analyses, guard, logger),
		NewAgentHandler(svc.Runs, svc.Analyses, cfg.Agent.Token, logger),
		NewWebSocketHandler(hub, svc.Runs, guard, logger),
	}
	for _, h := range handlers {
		h.RegisterRoutes(r)
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": ServiceName,
		})
	})

	return r
}
