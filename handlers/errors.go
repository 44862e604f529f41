package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"petshop/reconciler"
	"petshop/store"
)

// writeError maps a domain error onto its HTTP response. Anything outside the
// taxonomy is logged and answered with 500.
func writeError(c *gin.Context, err error) {
	var stockErr *reconciler.InsufficientStockError
	switch {
	case errors.Is(err, reconciler.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated"})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"message":   "Insufficient stock",
			"available": stockErr.Available,
		})
	case errors.Is(err, reconciler.ErrProductNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "The selected product id is invalid."})
	case errors.Is(err, reconciler.ErrLineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Cart item not found"})
	case errors.Is(err, store.ErrRecordNotFound), errors.Is(err, reconciler.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	case errors.Is(err, reconciler.ErrInvalidArgument):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
	default:
		zap.S().Errorw("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

// bindJSON decodes the body into req and answers 422 when it does not fit.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "Invalid request payload",
			"error":   err.Error(),
		})
		return false
	}
	return true
}

// idParam reads a positive id from the route; 0 means absent or malformed.
func idParam(c *gin.Context, name string) uint {
	id, err := cast.ToUintE(c.Param(name))
	if err != nil {
		return 0
	}
	return id
}

func userID(c *gin.Context) uint {
	return c.GetUint("UserID")
}
