package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/middleware"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

// respondError writes err with the status the service layer asked for.
// Unexpected errors are logged and answered with a generic message.
func respondError(c *gin.Context, logger *log.Logger, err error) {
	var taken *service.SlugTakenError
	if errors.As(err, &taken) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         taken.Error(),
			"suggestedSlug": taken.SuggestedSlug,
		})
		return
	}

	status := middleware.ErrorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// bindJSON decodes the body into req, answering 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
