package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/textrpg/audit"
	"github.com/kasuganosora/textrpg/game/chain"
	mw "github.com/kasuganosora/textrpg/middleware"
)

// ChainHandler handles storylines.
type ChainHandler struct {
	chains *chain.Service
	auditor
}

// NewChainHandler creates a ChainHandler.
func NewChainHandler(chains *chain.Service, a *audit.Service) *ChainHandler {
	return &ChainHandler{chains: chains, auditor: auditor{a}}
}

// List returns chains in progress, awaiting a claim, or ready to start.
// GET /api/chains
func (h *ChainHandler) List(c *gin.Context) {
	views, err := h.chains.ListAvailable(c.Request.Context(), mw.GetPlayerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chains": views})
}

// Detail returns the player's latest attempt at a chain.
// GET /api/chains/:id
func (h *ChainHandler) Detail(c *gin.Context) {
	v, err := h.chains.Get(c.Request.Context(), mw.GetPlayerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Start begins a chain.
// POST /api/chains/:id/start
func (h *ChainHandler) Start(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")
	out, err := h.chains.Start(c.Request.Context(), mw.GetPlayerID(c), id)
	h.record(c, start, audit.ActionChainStart, id, nil, out, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type chooseRequest struct {
	Choice string `json:"choice" binding:"required"`
}

// Choose resolves a pending branch.
// POST /api/chains/:id/choose {"choice": "Help"}
func (h *ChainHandler) Choose(c *gin.Context) {
	start := time.Now()
	var req chooseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "choice is required")
		return
	}
	id := c.Param("id")
	out, err := h.chains.ChooseBranch(c.Request.Context(), mw.GetPlayerID(c), id, req.Choice)
	h.record(c, start, audit.ActionChainChoose, id, req, out, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Claim grants a completed chain's rewards and unlocks.
// POST /api/chains/:id/claim
func (h *ChainHandler) Claim(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")
	res, err := h.chains.ClaimReward(c.Request.Context(), mw.GetPlayerID(c), id)
	h.record(c, start, audit.ActionChainClaim, id, nil, res, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
