package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay/internal/auth"
	"github.com/vovakirdan/wirerelay/internal/core"
)

// Keys under which AuthMiddleware stores the caller on the gin context.
const (
	ContextKeyAccountID = "relay.account_id"
	ContextKeyIdentity  = "relay.identity"
)

// AuthMiddleware admits requests carrying a valid grant token and records the
// caller's identity for the handlers behind it.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Debug().Str("path", c.FullPath()).Str("remote_addr", c.ClientIP()).Msg("no bearer token")
			abortWithError(c, http.StatusUnauthorized, core.ErrCodeUnauthorized, "bearer token required")
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			logger.Debug().Err(err).Str("path", c.FullPath()).Str("remote_addr", c.ClientIP()).Msg("bearer token rejected")
			abortWithError(c, http.StatusUnauthorized, core.ErrCodeUnauthorized, "invalid token")
			return
		}

		c.Set(ContextKeyAccountID, claims.UserID)
		c.Set(ContextKeyIdentity, claims.Username)
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header. The scheme is
// case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func identityFromContext(c *gin.Context) (string, bool) {
	identity := c.GetString(ContextKeyIdentity)
	return identity, identity != ""
}

// LoggerMiddleware logs one line per API request; server errors log at warn.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		if status >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", status).
			Str("remote_addr", c.ClientIP()).
			Dur("duration", time.Since(start)).
			Msg("api request")
	}
}
