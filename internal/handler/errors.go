package handler

import (
	"errors"
	"net/http"

	"crmrt/internal/service"
	"crmrt/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps err onto a status and a short message. Only unexpected
// failures are logged; msg is what the caller sees for those.
func writeError(c *gin.Context, logger *zap.Logger, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrCalendarEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrCalendarNotAuthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.ErrCalendarNotAuthorized.Error()})
	case errors.Is(err, service.ErrCalendarNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": service.ErrCalendarNotConfigured.Error()})
	case errors.Is(err, service.ErrCalendarBadState):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
	default:
		logger.Error(msg,
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
