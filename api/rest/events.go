package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/progression"
)

// EventHandler is the intake for gameplay events from trusted services.
type EventHandler struct {
	engine *progression.Engine
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(engine *progression.Engine) *EventHandler {
	return &EventHandler{engine: engine}
}

type eventRequest struct {
	PlayerID int64  `json:"player_id" binding:"required"`
	Kind     string `json:"kind" binding:"required"`
	Target   string `json:"target"`
	Quantity *int   `json:"quantity"` // defaults to 1
}

// Emit applies one gameplay event.
// POST /api/events {"player_id", "kind", "target", "quantity"}
func (h *EventHandler) Emit(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "player_id and kind are required")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	out, err := h.engine.Emit(c.Request.Context(), req.PlayerID, catalog.EventKind(req.Kind), req.Target, qty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Stats returns the engine counters.
// GET /api/admin/engine
func (h *EventHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats())
}
