package handlers

import (
	"errors"
	"net/http"

	"duel_webapp/internal/service"

	"github.com/gin-gonic/gin"
)

// Me returns the caller's profile totals.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	totals, err := h.Profiles.Profile(c.Request.Context(), userID)
	switch {
	case errors.Is(err, service.ErrProfileDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profiles disabled"})
		return
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       totals.UserID,
		"username": getUsername(c),
		"credits":  totals.Credits,
		"wins":     totals.Wins,
		"losses":   totals.Losses,
	})
}

// Logout drops the caller's live connections and advertised sessions.
func (h *Handler) Logout(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	closed := h.Hub.Logout(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"closed_connections": closed})
}
