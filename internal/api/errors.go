package api

import (
	"net/http"

	apperrors "energy-ai-agent/internal/common/errors"

	"github.com/gin-gonic/gin"
)

// respondError answers with the status mapped from a StandardError code, or 500.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	if stdErr, ok := apperrors.As(err); ok {
		body := gin.H{"error": stdErr.Message, "code": stdErr.Code}
		if stdErr.Details != "" {
			body["details"] = stdErr.Details
		}
		c.JSON(apperrors.HTTPStatus(stdErr.Code), body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// respondStatus answers {error} with a fixed status, used where the route contract fixes it.
func respondStatus(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " is not configured"})
}
