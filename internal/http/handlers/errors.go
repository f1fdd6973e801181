package handlers

import (
	"errors"
	"net/http"

	"ferrybook/internal/domain"
	"ferrybook/internal/http/middleware"
	"ferrybook/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
		Message:   message,
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	var (
		capacity   *domain.CapacityExceededError
		transition *domain.InvalidTransitionError
		refund     *domain.RefundNotAllowedError
	)
	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &transition):
		respondError(c, http.StatusConflict, "invalid_transition", err.Error(), gin.H{
			"entity": transition.Entity,
			"from":   transition.From,
			"to":     transition.To,
			"rule":   transition.Rule,
		})
	case domain.IsDuplicate(err):
		respondError(c, http.StatusConflict, "duplicate", err.Error(), nil)
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.As(err, &capacity):
		respondError(c, http.StatusUnprocessableEntity, "capacity_exceeded", err.Error(), capacityDetails(capacity))
	case errors.As(err, &refund):
		respondError(c, http.StatusUnprocessableEntity, "refund_not_allowed", err.Error(), nil)
	default:
		utils.LogWarn(middleware.GetRequestID(c), "http", c.FullPath(), "internal error: "+err.Error())
		respondError(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func capacityDetails(e *domain.CapacityExceededError) gin.H {
	return gin.H{
		"ferry_id":  e.FerryID,
		"date":      e.Date,
		"dimension": e.Dimension,
		"current":   e.Current,
		"max":       e.Max,
		"requested": e.Requested,
	}
}
