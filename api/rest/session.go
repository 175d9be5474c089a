package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/textrpg/audit"
	"github.com/kasuganosora/textrpg/cache"
	"github.com/kasuganosora/textrpg/config"
	"github.com/kasuganosora/textrpg/game/goalerr"
	mw "github.com/kasuganosora/textrpg/middleware"
	"github.com/kasuganosora/textrpg/model"
	"gorm.io/gorm"
)

// SessionHandler issues and revokes player sessions. Accounts live in the
// game server; it asks for a session through the admin API after its own
// login.
type SessionHandler struct {
	db    *gorm.DB
	cache cache.Cache
	sec   config.SecurityConfig
	auditor
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, a *audit.Service) *SessionHandler {
	return &SessionHandler{db: db, cache: c, sec: sec, auditor: auditor{a}}
}

func (h *SessionHandler) issue(ctx context.Context, playerID int64) (string, error) {
	token, err := mw.GenerateToken(playerID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	// Store session in cache so Auth can check it is still alive.
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token), strconv.FormatInt(playerID, 10), h.sec.JWTTTLH); err != nil {
		return "", err
	}
	return token, nil
}

// Issue creates a session for a player.
// POST /api/admin/sessions/:player_id
func (h *SessionHandler) Issue(c *gin.Context) {
	start := time.Now()
	playerID, err := strconv.ParseInt(c.Param("player_id"), 10, 64)
	if err != nil || playerID <= 0 {
		badRequest(c, "invalid player id")
		return
	}
	var p model.Player
	if err := h.db.WithContext(c.Request.Context()).First(&p, playerID).Error; err != nil {
		if goalerr.IsRecordNotFound(err) {
			respondError(c, goalerr.NotFoundf("player", fmt.Sprint(playerID)))
			return
		}
		respondError(c, goalerr.Storage("load player", err))
		return
	}
	token, err := h.issue(c.Request.Context(), playerID)
	h.recordFor(c, playerID, start, audit.ActionSessionIssue, "", nil, nil, err)
	if err != nil {
		respondError(c, goalerr.Storage("issue session", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"player_id":  playerID,
		"expires_at": time.Now().Add(h.sec.JWTTTLH),
	})
}

// Logout handles POST /api/session/logout.
func (h *SessionHandler) Logout(c *gin.Context) {
	tokenStr := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if tokenStr == "" {
		badRequest(c, "missing token")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(tokenStr))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/session/refresh.
func (h *SessionHandler) Refresh(c *gin.Context) {
	playerID := mw.GetPlayerID(c)
	if playerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Invalidate old token
	oldToken := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	_ = h.cache.Del(ctx, mw.SessionKey(oldToken))
	cancel()

	token, err := h.issue(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, goalerr.Storage("issue session", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
