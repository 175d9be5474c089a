package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/textrpg/game/goalerr"
	"github.com/kasuganosora/textrpg/game/notify"
	mw "github.com/kasuganosora/textrpg/middleware"
)

// NotificationHandler handles the player's inbox.
type NotificationHandler struct {
	notify *notify.Service
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(n *notify.Service) *NotificationHandler {
	return &NotificationHandler{notify: n}
}

// List returns recent notifications, newest first.
// GET /api/notifications?unread=1&limit=50
func (h *NotificationHandler) List(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.notify.List(c.Request.Context(), mw.GetPlayerID(c), unread, limit)
	if err != nil {
		respondError(c, goalerr.Storage("list notifications", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

type markReadRequest struct {
	IDs []int64 `json:"ids"`
}

// MarkRead marks the given notifications read, or all of them when ids is
// empty.
// POST /api/notifications/read {"ids": [1, 2]}
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	n, err := h.notify.MarkRead(c.Request.Context(), mw.GetPlayerID(c), req.IDs)
	if err != nil {
		respondError(c, goalerr.Storage("mark notifications read", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
