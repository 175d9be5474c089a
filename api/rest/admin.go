package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/textrpg/audit"
	"github.com/kasuganosora/textrpg/game/achievement"
	"github.com/kasuganosora/textrpg/game/goalerr"
	"github.com/kasuganosora/textrpg/game/progression"
	"github.com/kasuganosora/textrpg/game/quest"
	"github.com/kasuganosora/textrpg/model"
	"github.com/kasuganosora/textrpg/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by middleware.AdminAuth.
type AdminHandler struct {
	db           *gorm.DB
	engine       *progression.Engine
	quests       *quest.Service
	achievements *achievement.Service
	audit        *audit.Service
	sched        *scheduler.Scheduler
	logger       *zap.Logger
	auditor
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	db *gorm.DB,
	engine *progression.Engine,
	quests *quest.Service,
	achievements *achievement.Service,
	a *audit.Service,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		db:           db,
		engine:       engine,
		quests:       quests,
		achievements: achievements,
		audit:        a,
		sched:        sched,
		logger:       logger,
		auditor:      auditor{a},
	}
}

// Metrics returns engine counters and housekeeping state.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	var players int64
	if err := h.db.WithContext(c.Request.Context()).Model(&model.Player{}).Count(&players).Error; err != nil {
		respondError(c, goalerr.Storage("count players", err))
		return
	}
	out := gin.H{
		"players": players,
		"engine":  h.engine.Stats(),
	}
	if h.sched != nil {
		out["scheduler_tasks"] = h.sched.ListTasks()
	}
	if h.audit != nil {
		out["audit_dropped"] = h.audit.Dropped()
	}
	c.JSON(http.StatusOK, out)
}

type createPlayerRequest struct {
	Name  string `json:"name" binding:"required,min=2,max=32"`
	Level int    `json:"level"`
}

// CreatePlayer registers a player mirrored from the game server.
// POST /api/admin/players {"name", "level"}
func (h *AdminHandler) CreatePlayer(c *gin.Context) {
	var req createPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name must be 2 to 32 characters")
		return
	}
	p := &model.Player{Name: req.Name, Level: max(req.Level, 1)}
	if err := h.db.WithContext(c.Request.Context()).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			respondError(c, goalerr.New(goalerr.DuplicateActive, "name_taken", "player name taken").With("name", req.Name))
			return
		}
		respondError(c, goalerr.Storage("create player", err))
		return
	}
	h.logger.Info("player created", zap.Int64("player_id", p.ID), zap.String("name", p.Name))
	c.JSON(http.StatusCreated, p)
}

// AssignQuest gives a player a quest outside the refresh cycle, e.g. from
// an NPC dialogue.
// POST /api/admin/players/:player_id/quests/:quest_id
func (h *AdminHandler) AssignQuest(c *gin.Context) {
	start := time.Now()
	playerID, err := strconv.ParseInt(c.Param("player_id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid player id")
		return
	}
	questID := c.Param("quest_id")
	rec, err := h.quests.Assign(c.Request.Context(), playerID, questID)
	h.recordFor(c, playerID, start, audit.ActionQuestAssign, questID, nil, rec, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// RebuildRanking recomputes the achievement leaderboard from the database.
// POST /api/admin/ranking/rebuild
func (h *AdminHandler) RebuildRanking(c *gin.Context) {
	n, err := h.achievements.RebuildRanking(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": n})
}

// AuditLog returns recent audit entries.
// GET /api/admin/audit?player_id=7&limit=100
func (h *AdminHandler) AuditLog(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []model.AuditLog{}})
		return
	}
	playerID, _ := strconv.ParseInt(c.Query("player_id"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.audit.Recent(c.Request.Context(), playerID, limit)
	if err != nil {
		respondError(c, goalerr.Storage("read audit log", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ListSchedulerTasks returns names of all registered maintenance tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	var tasks []string
	if h.sched != nil {
		tasks = h.sched.ListTasks()
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}
