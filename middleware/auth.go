package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/textrpg/cache"
	"github.com/kasuganosora/textrpg/config"
)

const PlayerIDKey = "player_id"

// ErrSessionExpired is returned for a valid token whose session was revoked
// or has timed out.
var ErrSessionExpired = errors.New("session expired")

// SessionKey is the cache key that keeps a token's session alive.
func SessionKey(token string) string {
	return "session:" + token
}

// Authenticate validates token and its session and returns the player ID.
func Authenticate(ctx context.Context, sec config.SecurityConfig, c cache.Cache, token string) (int64, error) {
	claims, err := ParseToken(token, sec.JWTSecret)
	if err != nil {
		return 0, err
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := c.Get(cacheCtx, SessionKey(token)); err != nil {
		return 0, ErrSessionExpired
	}
	return claims.PlayerID, nil
}

// Auth validates the Bearer JWT token and checks the session cache.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		playerID, err := Authenticate(ctx.Request.Context(), sec, c, strings.TrimPrefix(header, "Bearer "))
		if errors.Is(err, ErrSessionExpired) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		ctx.Set(PlayerIDKey, playerID)
		ctx.Next()
	}
}

// GetPlayerID retrieves the authenticated player ID from the Gin context.
func GetPlayerID(c *gin.Context) int64 {
	if v, exists := c.Get(PlayerIDKey); exists {
		return v.(int64)
	}
	return 0
}

// KeyAuth requires header to carry key. With an empty key the guarded
// routes are disabled (503) so they cannot be deployed unprotected.
func KeyAuth(header, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "endpoint disabled: no key configured"})
			return
		}
		got := c.GetHeader(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid key"})
			return
		}
		c.Next()
	}
}

// AdminAuth guards admin endpoints with the X-Admin-Key header.
func AdminAuth(key string) gin.HandlerFunc {
	return KeyAuth("X-Admin-Key", key)
}

// ServiceAuth guards the event intake used by gameplay services.
func ServiceAuth(key string) gin.HandlerFunc {
	return KeyAuth("X-Service-Key", key)
}
