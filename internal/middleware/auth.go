// Package middleware holds the gin middleware shared by every route group:
// session and agent authentication, organization/project scoping, CORS and
// request logging.
package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

const (
	userKey  = "user"
	scopeKey = "scope"
)

// ErrorStatus maps a service error to its HTTP status.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrNotAuthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrGone):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// abort stops the chain with the status for err. Internal errors are not
// echoed to the client.
func abort(c *gin.Context, err error) {
	status := ErrorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// SessionToken extracts the session token from the cookie or a bearer header.
func SessionToken(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token
	}
	return bearer(c)
}

func bearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// SessionAuth requires a live session and stores its user in the context.
func SessionAuth(auth service.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request.Context(), SessionToken(c, cookieName))
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// AgentAuth requires the shared agent token as bearer. With no token
// configured every request is rejected.
func AgentAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := bearer(c)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			abort(c, service.ErrNotAuthorized)
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by SessionAuth.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
