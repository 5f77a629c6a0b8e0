package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/paramkeep/paramkeep/internal/httputil"
	"github.com/paramkeep/paramkeep/internal/metrics"
)

// respondError aborts a request rejected by middleware, before any handler
// runs, and counts it like handler errors.
func respondError(c *gin.Context, code int, errCode, message string) {
	metrics.ErrorsTotal.WithLabelValues(errCode).Inc()
	httputil.RespondError(c, code, errCode, message)
}
