package middleware

import (
	"errors"
	"net/http"
	"strings"

	"duel_webapp/internal/service"

	"github.com/gin-gonic/gin"
)

// Context keys set by JWT.
const (
	CtxUserID    = "user_id"
	CtxUsername  = "username"
	CtxExpiresAt = "token_expires_at"
)

// JWT accepts "Authorization: Bearer <token>" and stores the claims on the
// gin context.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			AuthFailures.WithLabelValues("missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := service.ParseJWT(strings.TrimSpace(token))
		if err != nil {
			reason, msg := "invalid", "invalid token"
			if errors.Is(err, service.ErrTokenExpired) {
				reason, msg = "expired", "token expired"
			}
			AuthFailures.WithLabelValues(reason).Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUsername, claims.Username)
		c.Set(CtxExpiresAt, claims.ExpiresAt)
		c.Next()
	}
}

// UserID reads the id stored by JWT.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
