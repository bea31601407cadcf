package handlers

import (
	"errors"
	"net/http"

	"duel_webapp/internal/domain"
	"duel_webapp/internal/session"
	"duel_webapp/internal/ws"

	"github.com/gin-gonic/gin"
)

type createSessionRequest struct {
	GameType    domain.GameType `json:"game_type" binding:"required"`
	Role        domain.Role     `json:"role" binding:"required"`
	RoundCount  int             `json:"round_count"`
	DisplayName string          `json:"display_name"`
}

// ListSessions - GET /sessions?role=&game=
func (h *Handler) ListSessions(c *gin.Context) {
	f := session.Filter{
		Role:     domain.Role(c.Query("role")),
		GameType: domain.GameType(c.Query("game")),
	}
	if f.Role != "" && !f.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	if f.GameType != "" && !f.GameType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown game"})
		return
	}

	sessions := h.Hub.Directory().List(c.Request.Context(), f)
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// CreateSession advertises a session hosted by one of the caller's open
// websocket connections.
func (h *Handler) CreateSession(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = getUsername(c)
	}

	rec, err := h.Hub.CreateFor(c.Request.Context(), userID, ws.Request{
		Type:        ws.MsgCreateSession,
		GameType:    req.GameType,
		Role:        req.Role,
		RoundCount:  req.RoundCount,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": rec})
}

// CancelSession - DELETE /sessions/:id, creator only
func (h *Handler) CancelSession(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.Hub.CancelSession(c.Request.Context(), c.Param("id"), userID); err != nil {
		writeSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeSessionError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRoleConflict), errors.Is(err, ws.ErrNotConnected):
		status = http.StatusConflict
	case errors.Is(err, ws.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrUnknownGame), domain.IsValidation(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
