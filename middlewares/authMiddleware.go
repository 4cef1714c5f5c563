package middlewares

import (
	"log/slog"
	"net/http"
	"strings"

	"civicsync/identity"
	"civicsync/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthCookie is the cookie the login handler sets.
const AuthCookie = "auth_token"

// ActorKey is the gin context key holding the identity.Actor.
const ActorKey = "actor"

// AuthMiddleware validates the bearer token (or auth cookie) and attaches
// the caller as an identity.Actor to both the gin and request contexts.
func AuthMiddleware(secret string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			return
		}

		claims, err := utils.ParseToken(tokenString, secret)
		if err != nil {
			logger.Debug("token validation failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}

		actor := identity.Actor{ID: userID, IsAdmin: claims.IsAdmin}
		c.Set("user_id", claims.UserID)
		c.Set(ActorKey, actor)
		c.Request = c.Request.WithContext(identity.WithActor(c.Request.Context(), actor))

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.Request.Header.Get("Authorization")
	if authHeader != "" {
		// Extracting token from "Bearer <token>" format
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := c.Cookie(AuthCookie); err == nil {
		return cookie
	}
	return ""
}

// CurrentActor returns the actor set by AuthMiddleware, falling back to
// one carried on the request context.
func CurrentActor(c *gin.Context) (identity.Actor, bool) {
	if v, exists := c.Get(ActorKey); exists {
		if actor, ok := v.(identity.Actor); ok {
			return actor, true
		}
	}
	return identity.FromContext(c.Request.Context())
}
