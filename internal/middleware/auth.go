package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"usergate/api/internal/models"
	"usergate/api/internal/repository"
)

const bearerPrefix = "Bearer "

// SessionResolver resolves an opaque session token to its owning user.
type SessionResolver interface {
	SessionByToken(ctx context.Context, token string) (models.SessionUser, error)
}

// Auth validates the session credential on every request: the token is looked
// up in storage, expiry is compared against the clock at call time, and the
// account must still be active. Pure read; nothing is refreshed or logged to
// the audit trail.
func Auth(sessions SessionResolver, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		token := header
		if strings.HasPrefix(header, bearerPrefix) {
			token = strings.TrimPrefix(header, bearerPrefix)
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		session, err := sessions.SessionByToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_not_found"})
				return
			}
			log.Error().Err(err).Msg("session lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
			return
		}

		if session.Expired(time.Now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_expired"})
			return
		}

		// Valid credential, withdrawn access: forbidden, not unauthorized.
		if !session.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account_inactive"})
			return
		}

		c.Set(identityKey, session.Identity())
		c.Set(sessionTokenKey, token)

		c.Next()
	}
}
