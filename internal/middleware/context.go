package middleware

import (
	"github.com/gin-gonic/gin"

	"usergate/api/internal/models"
)

const (
	identityKey     = "current_identity"
	sessionTokenKey = "session_token"
)

// IdentityFromContext returns the principal the auth guard attached.
func IdentityFromContext(c *gin.Context) (models.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

// TokenFromContext returns the raw session token the auth guard validated.
func TokenFromContext(c *gin.Context) (string, bool) {
	v, exists := c.Get(sessionTokenKey)
	if !exists {
		return "", false
	}
	token, ok := v.(string)
	return token, ok && token != ""
}
