package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

// OrganizationScope resolves the :org path segment for the current user.
// Must run after SessionAuth.
func OrganizationScope(access service.AccessService) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := access.Organization(c.Request.Context(), CurrentUser(c), c.Param("org"))
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(scopeKey, scope)
		c.Next()
	}
}

// ProjectScope resolves :org and :project for the current user.
// Must run after SessionAuth.
func ProjectScope(access service.AccessService) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := access.Project(c.Request.Context(), CurrentUser(c), c.Param("org"), c.Param("project"))
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(scopeKey, scope)
		c.Next()
	}
}

// RequireManager allows only owners and admins of the scoped organization.
func RequireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		if scope := CurrentScope(c); scope == nil || !scope.CanManage() {
			abort(c, service.ErrNotAuthorized)
			return
		}
		c.Next()
	}
}

// CurrentScope returns the scope stored by OrganizationScope or ProjectScope.
func CurrentScope(c *gin.Context) *service.Scope {
	if v, ok := c.Get(scopeKey); ok {
		if scope, ok := v.(*service.Scope); ok {
			return scope
		}
	}
	return nil
}
