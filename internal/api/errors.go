package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/httputil"
	"github.com/paramkeep/paramkeep/internal/metrics"
	"github.com/paramkeep/paramkeep/internal/models"
)

// Error code constants for standardized API responses. Name lookups use the
// kind-specific codes of models.NotFoundError, such as "project_not_found".
const (
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeInvalidValue       = "invalid_value"
	ErrCodeInvalidCombination = "invalid_combination"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeInternalError      = "internal_error"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeRateLimited        = "rate_limited"
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	respondErrorDetails(c, status, code, message, nil)
}

func respondErrorDetails(c *gin.Context, status int, code, message string, details []string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondErrorDetails(c, status, code, message, details)
}

// respondServiceError maps a service error onto the error envelope. Anything
// unrecognized is logged and reported as an internal error.
func respondServiceError(c *gin.Context, log *logrus.Logger, err error, doing string) {
	var details []string

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		details = verr.Diagnostics()
		err = verr.Primary()
	}

	var (
		nf    *models.NotFoundError
		combo *models.InvalidCombinationError
		inval *models.InvalidValueError
	)

	switch {
	case errors.As(err, &nf):
		respondErrorDetails(c, http.StatusNotFound, nf.Code(), nf.Error(), details)
	case errors.As(err, &combo):
		respondErrorDetails(c, http.StatusBadRequest, ErrCodeInvalidCombination, combo.Error(), details)
	case errors.As(err, &inval):
		respondErrorDetails(c, http.StatusBadRequest, ErrCodeInvalidValue, inval.Error(), details)
	case errors.Is(err, models.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
	case errors.Is(err, models.ErrDuplicateKey):
		respondError(c, http.StatusConflict, ErrCodeConflict, "an object with this name already exists")
	case errors.Is(err, models.ErrAuditEntryNotFound), errors.Is(err, models.ErrNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "not found")
	default:
		log.WithError(err).WithField("request_id", c.GetString("request_id")).Error(doing)
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}
