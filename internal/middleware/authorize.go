package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"usergate/api/internal/repository"
)

// PermissionChecker reports whether a user holds a (resource, action)
// capability. Resolution is dynamic: every call re-reads the role graph, so
// a revoked role takes effect on the next request without reissuing tokens.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID, resource, action string) (repository.Decision, error)
}

// RequirePermission gates a route on one capability. Auth must run first.
func RequirePermission(checker PermissionChecker, resource, action string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		decision, err := checker.CheckPermission(c.Request.Context(), identity.ID, resource, action)
		if err != nil {
			log.Error().Err(err).
				Str("resource", resource).
				Str("action", action).
				Msg("permission check failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
			return
		}
		if decision != repository.DecisionAllowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
