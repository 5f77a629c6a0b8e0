package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/middleware"
	"github.com/paramkeep/paramkeep/internal/models"
	"github.com/paramkeep/paramkeep/internal/ws"
)

// getSession returns the authenticated session and validates its org id. It
// responds and returns false when the session is missing or malformed.
func getSession(c *gin.Context) (models.Session, bool) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
		return sess, false
	}

	if _, err := uuid.Parse(sess.OrgID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid organization id")
		return sess, false
	}

	return sess, true
}

func wsHandler(appCtx context.Context, log *logrus.Logger, hub *ws.Hub, corsOrigins []string, lookup ws.SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := getSession(c)
		if !ok {
			return
		}

		// Extract the raw API key for periodic re-validation.
		apiKey := middleware.ExtractBearerToken(c)

		filter := ws.Filter{
			ObjectType: string(models.ResolveObjectType(c.Query("type"))),
			Action:     c.Query("action"),
			Name:       c.Query("name"),
		}

		// CORS origins are reused as WebSocket origin patterns. The config
		// validator ensures these are safe host patterns (no wildcards etc.).
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns:       corsOrigins,
			CompressionMode:      websocket.CompressionContextTakeover,
			CompressionThreshold: 128,
		})
		if err != nil {
			log.WithError(err).Error("websocket accept failed")
			return
		}

		client := ws.NewClient(hub, conn, lookup, apiKey, sess.OrgID, filter)
		hub.Register(client)

		// Derive a context that cancels when either the server shuts down or the request ends.
		wsCtx, wsCancel := context.WithCancel(appCtx)
		go func() {
			select {
			case <-c.Request.Context().Done():
				wsCancel()
			case <-wsCtx.Done():
			}
		}()

		go client.WritePump(wsCtx)
		client.ReadPump(wsCtx)
		wsCancel()
	}
}

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid := middleware.RequestIDFrom(c); rid != "" {
			fields["request_id"] = rid
		}
		if crid := middleware.ClientRequestIDFrom(c); crid != "" {
			fields["client_request_id"] = crid
		}
		if oid := c.GetString(middleware.OrgIDKey); oid != "" {
			fields["org_id"] = oid
		}
		log.WithFields(fields).Info("request")
	}
}

// queryInt parses an optional integer query parameter. Absent parameters
// yield fallback.
func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	s, ok := c.GetQuery(name)
	if !ok || s == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}

	return v, nil
}

// validatePathName checks that a path parameter name is non-empty and within length limits.
func validatePathName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("name exceeds maximum length of 255")
	}
	return nil
}

// pathNames reads and validates the named path parameters in order.
func pathNames(c *gin.Context, keys ...string) ([]string, bool) {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = c.Param(k)
		if err := validatePathName(out[i]); err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, k+": "+err.Error())
			return nil, false
		}
	}
	return out, true
}
