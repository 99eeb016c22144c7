package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tableread/internal/logging"
	"tableread/internal/remote"
)

// requestLogger logs one line per request with the route template rather
// than the raw path, so session ids do not explode the log vocabulary.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		attrs := []logging.Attr{
			logging.String("method", c.Request.Method),
			logging.String("route", route),
			logging.Int("status_code", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
			logging.String("remote_addr", c.ClientIP()),
		}
		if sessionID := c.Param("id"); sessionID != "" {
			attrs = append(attrs, logging.String(logging.FieldSessionID, sessionID))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("request failed", logging.Args(attrs...)...)
			return
		}
		s.logger.Debug("request served", logging.Args(attrs...)...)
	}
}

// requireBearerToken rejects requests whose Authorization header does not
// carry the configured token.
func requireBearerToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, remote.ErrorPayload{
				Message: "missing or invalid bearer token",
			})
			return
		}
		c.Next()
	}
}
