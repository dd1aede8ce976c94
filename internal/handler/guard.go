package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/middleware"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

// Guard builds the middleware chains protecting each route group.
type Guard struct {
	auth       service.AuthService
	access     service.AccessService
	cookieName string
}

// NewGuard creates a Guard reading sessions from cookieName.
func NewGuard(auth service.AuthService, access service.AccessService, cookieName string) *Guard {
	return &Guard{auth: auth, access: access, cookieName: cookieName}
}

// Session requires a signed-in user.
func (g *Guard) Session() []gin.HandlerFunc {
	return []gin.HandlerFunc{middleware.SessionAuth(g.auth, g.cookieName)}
}

// Organization requires membership of :org.
func (g *Guard) Organization() []gin.HandlerFunc {
	return append(g.Session(), middleware.OrganizationScope(g.access))
}

// Project requires membership of :org and an existing :project.
func (g *Guard) Project() []gin.HandlerFunc {
	return append(g.Session(), middleware.ProjectScope(g.access))
}
