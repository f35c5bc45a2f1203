package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "github.com/Doogleyarae/Doogleonline-sub000/pkg/errors"
)

// respondError maps a workflow error to its HTTP shape. Unknown errors are
// logged and surfaced as an opaque 500.
func respondError(c *gin.Context, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		c.JSON(appErr.Status, gin.H{"error": appErr})
		return
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Error("unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": apperrors.NewInternalError()})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": apperrors.NewValidationError("Invalid request body", err.Error()),
	})
}
