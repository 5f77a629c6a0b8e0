package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/models"
)

// authTimingFloor is the minimum response time for auth endpoints to prevent
// timing oracle attacks that could distinguish valid from invalid API keys.
const authTimingFloor = 50 * time.Millisecond

// Gin context keys set by AuthMiddleware.
const (
	OrgIDKey    = "org_id"
	UserIDKey   = "user_id"
	UserNameKey = "user_name"
)

// SessionLookup resolves an API key to the session of its user.
type SessionLookup interface {
	GetSessionByAPIKey(ctx context.Context, apiKey string) (*models.Session, error)
}

// truncateKey returns at most the first 4 characters of key followed by "...".
func truncateKey(key string) string {
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return key
}

// enforceTimingFloor sleeps if needed so the response takes at least authTimingFloor.
func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// AuthMiddleware returns Gin middleware that authenticates requests via Bearer token
// and stores the caller's session in the context.
func AuthMiddleware(lookup SessionLookup, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		apiKey := ExtractBearerToken(c)
		if apiKey == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header")
			return
		}

		sess, err := lookup.GetSessionByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			logAuthFailure(log, c, apiKey)
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid api key")
			return
		}

		c.Set(OrgIDKey, sess.OrgID)
		c.Set(UserIDKey, sess.UserID)
		c.Set(UserNameKey, sess.UserName)
		c.Next()
	}
}

// SessionFrom returns the session AuthMiddleware stored in c.
func SessionFrom(c *gin.Context) (models.Session, bool) {
	sess := models.Session{
		OrgID:    c.GetString(OrgIDKey),
		UserID:   c.GetString(UserIDKey),
		UserName: c.GetString(UserNameKey),
	}
	return sess, sess.OrgID != ""
}

// ExtractBearerToken extracts the API key from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// logAuthFailure logs a failed authentication attempt.
func logAuthFailure(log *logrus.Logger, c *gin.Context, apiKey string) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"request_id": RequestIDFrom(c),
		"key_prefix": truncateKey(apiKey),
	}).Warn("authentication failed: invalid api key")
}
