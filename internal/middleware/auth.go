package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/pkg/auth"
)

const (
	IdentityKey = "identity"
	TokenKey    = "token"
)

type Resolver interface {
	Resolve(ctx context.Context, credential string) (*models.Identity, error)
}

// RequireIdentity rejects requests without a usable access token and stores
// the caller's identity and raw token in the context.
func RequireIdentity(resolver Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractToken(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		c.Set(IdentityKey, identity)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// CurrentIdentity returns the identity set by RequireIdentity.
func CurrentIdentity(c *gin.Context) *models.Identity {
	return c.MustGet(IdentityKey).(*models.Identity)
}

func CurrentToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
