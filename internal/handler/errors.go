package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/food-ordering-api/internal/repository"
	"github.com/flicky/food-ordering-api/internal/service"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrUserAlreadyExists, http.StatusConflict},
	{service.ErrInvalidStatusTransition, http.StatusConflict},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrUnauthorized, http.StatusUnauthorized},
	{service.ErrOrderAccessDenied, http.StatusForbidden},
	{service.ErrProductNotFound, http.StatusNotFound},
	{service.ErrCategoryNotFound, http.StatusNotFound},
	{service.ErrOrderNotFound, http.StatusNotFound},
	{service.ErrPasswordTooLong, http.StatusBadRequest},
	{service.ErrNoFieldsToUpdate, http.StatusBadRequest},
	{service.ErrInvalidPrice, http.StatusBadRequest},
	{service.ErrEmptyOrder, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrOrderTotalTooLarge, http.StatusBadRequest},
	{service.ErrProductUnavailable, http.StatusBadRequest},
	{service.ErrInvalidOrderStatus, http.StatusBadRequest},
	{service.ErrInvalidPeriod, http.StatusBadRequest},
	{repository.ErrValueOutOfRange, http.StatusBadRequest},
}

// respondError writes the status mapped to err. Unmapped errors are logged and
// hidden behind a generic 500.
func respondError(c *gin.Context, err error) {
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": err.Error()})
			return
		}
	}
	slog.ErrorContext(c.Request.Context(), "request failed",
		"error", err, "method", c.Request.Method, "path", c.FullPath())
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
