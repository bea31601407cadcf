package handlers

import (
	"duel_webapp/internal/service"
	"duel_webapp/internal/ws"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Hub      *ws.Hub
	Profiles *service.ProfileService
}

func NewHandler(hub *ws.Hub, profiles *service.ProfileService) *Handler {
	return &Handler{Hub: hub, Profiles: profiles}
}

// getUserID reads the id the JWT middleware stored on the context.
func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	switch id := v.(type) {
	case int64:
		return id, true
	case float64:
		return int64(id), true
	default:
		return 0, false
	}
}

func getUsername(c *gin.Context) string {
	return c.GetString("username")
}
