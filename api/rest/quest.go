package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/textrpg/audit"
	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/quest"
	mw "github.com/kasuganosora/textrpg/middleware"
)

// QuestHandler handles the player's quest journal.
type QuestHandler struct {
	quests *quest.Service
	auditor
}

// NewQuestHandler creates a QuestHandler.
func NewQuestHandler(quests *quest.Service, a *audit.Service) *QuestHandler {
	return &QuestHandler{quests: quests, auditor: auditor{a}}
}

// List returns the player's unrewarded quests.
// GET /api/quests?type=daily
func (h *QuestHandler) List(c *gin.Context) {
	t := catalog.QuestType(c.Query("type"))
	switch t {
	case "", catalog.QuestDaily, catalog.QuestWeekly, catalog.QuestStory, catalog.QuestEvent:
	default:
		badRequest(c, "unknown quest type")
		return
	}
	views, err := h.quests.ListActive(c.Request.Context(), mw.GetPlayerID(c), t)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": views})
}

// Refresh tops up the player's daily and weekly quests.
// POST /api/quests/refresh
func (h *QuestHandler) Refresh(c *gin.Context) {
	start := time.Now()
	views, err := h.quests.RefreshDaily(c.Request.Context(), mw.GetPlayerID(c))
	h.record(c, start, audit.ActionQuestRefresh, "", nil, gin.H{"assigned": len(views)}, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": views})
}

// Claim grants a completed quest's rewards.
// POST /api/quests/:id/claim
func (h *QuestHandler) Claim(c *gin.Context) {
	start := time.Now()
	questID := c.Param("id")
	res, err := h.quests.Claim(c.Request.Context(), mw.GetPlayerID(c), questID)
	h.record(c, start, audit.ActionQuestClaim, questID, nil, res, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
