package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"civicsync/apperr"

	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	kind   error
	status int
}{
	{apperr.ErrNotFound, http.StatusNotFound},
	{apperr.ErrForbidden, http.StatusForbidden},
	{apperr.ErrNotEligible, http.StatusForbidden},
	{apperr.ErrAlreadyAssigned, http.StatusConflict},
	{apperr.ErrInvalidTransition, http.StatusConflict},
	{apperr.ErrEmptyContent, http.StatusBadRequest},
	{apperr.ErrInvalidInput, http.StatusBadRequest},
	{apperr.ErrNotASolutionResponse, http.StatusUnprocessableEntity},
	{apperr.ErrAlreadyAccepted, http.StatusConflict},
	{apperr.ErrConflict, http.StatusConflict},
}

// statusFor maps an error kind to its HTTP status; unknown errors are 500.
func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.kind) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ...}. Internal errors are logged and
// hidden behind a generic message.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "Something went wrong"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
