package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/collabute-be/internal/api/storage"
	"github.com/cuongbtq/collabute-be/internal/auth"
	"github.com/cuongbtq/collabute-be/internal/chat"
	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/jobs"
	"github.com/cuongbtq/collabute-be/internal/model"
	"github.com/gin-gonic/gin"
)

// contextUserKey is where the auth middleware stores the resolved user
const contextUserKey = "auth.user"

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Auth        *auth.Service
	Storage     *storage.Storage
	Dispatcher  *jobs.Dispatcher
	ChatService *chat.Service
	Gateway     *chat.Gateway
}

// CurrentUser returns the authenticated user placed on the context by the
// auth middleware
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(contextUserKey); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}

// SetCurrentUser stores the authenticated user on the request context
func SetCurrentUser(c *gin.Context, user *model.User) {
	c.Set(contextUserKey, user)
}

// writeError maps domain errors onto HTTP status codes
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnknownQueue):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrQueueUnavailable):
		logger.Error("Queue backend unavailable", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue backend unavailable"})
	default:
		logger.Error("Request failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
