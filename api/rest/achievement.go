package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/textrpg/audit"
	"github.com/kasuganosora/textrpg/game/achievement"
	mw "github.com/kasuganosora/textrpg/middleware"
)

const rankingTop = 100

// AchievementHandler handles achievements and the achievement leaderboard.
type AchievementHandler struct {
	achievements *achievement.Service
	auditor
}

// NewAchievementHandler creates an AchievementHandler.
func NewAchievementHandler(achievements *achievement.Service, a *audit.Service) *AchievementHandler {
	return &AchievementHandler{achievements: achievements, auditor: auditor{a}}
}

// List returns progress on every active achievement.
// GET /api/achievements
func (h *AchievementHandler) List(c *gin.Context) {
	views, err := h.achievements.ListProgress(c.Request.Context(), mw.GetPlayerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": views})
}

// Claimable returns achievements with unclaimed tiers.
// GET /api/achievements/claimable
func (h *AchievementHandler) Claimable(c *gin.Context) {
	views, err := h.achievements.ListClaimable(c.Request.Context(), mw.GetPlayerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": views})
}

// Claim grants every reached but unclaimed tier.
// POST /api/achievements/:id/claim
func (h *AchievementHandler) Claim(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")
	res, err := h.achievements.Claim(c.Request.Context(), mw.GetPlayerID(c), id)
	h.record(c, start, audit.ActionAchievementClaim, id, nil, res, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Rank returns the caller's own leaderboard position.
// GET /api/achievements/rank
func (h *AchievementHandler) Rank(c *gin.Context) {
	entry, err := h.achievements.Rank(c.Request.Context(), mw.GetPlayerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Ranking returns the players with the most achievement tiers.
// GET /api/ranking/achievements?limit=20
func (h *AchievementHandler) Ranking(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}
	entries, err := h.achievements.Ranking(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}
