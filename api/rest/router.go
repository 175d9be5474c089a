package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/textrpg/api/sse"
	"github.com/kasuganosora/textrpg/audit"
	"github.com/kasuganosora/textrpg/cache"
	"github.com/kasuganosora/textrpg/config"
	"github.com/kasuganosora/textrpg/game/achievement"
	"github.com/kasuganosora/textrpg/game/chain"
	"github.com/kasuganosora/textrpg/game/notify"
	"github.com/kasuganosora/textrpg/game/progression"
	"github.com/kasuganosora/textrpg/game/quest"
	mw "github.com/kasuganosora/textrpg/middleware"
	"github.com/kasuganosora/textrpg/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Config       *config.Config
	DB           *gorm.DB
	Cache        cache.Cache
	PubSub       cache.PubSub
	Engine       *progression.Engine
	Quests       *quest.Service
	Achievements *achievement.Service
	Chains       *chain.Service
	Notify       *notify.Service
	Audit        *audit.Service
	Scheduler    *scheduler.Scheduler
	Logger       *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(d.Logger), mw.Recovery(d.Logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	eventH := NewEventHandler(d.Engine)
	sessionH := NewSessionHandler(d.DB, d.Cache, cfg.Security, d.Audit)
	questH := NewQuestHandler(d.Quests, d.Audit)
	achH := NewAchievementHandler(d.Achievements, d.Audit)
	chainH := NewChainHandler(d.Chains, d.Audit)
	noteH := NewNotificationHandler(d.Notify)
	adminH := NewAdminHandler(d.DB, d.Engine, d.Quests, d.Achievements, d.Audit, d.Scheduler, d.Logger)

	api := r.Group("/api")
	{
		api.POST("/events", mw.ServiceAuth(cfg.Server.ServiceKey), eventH.Emit)

		// Leaderboard is public.
		api.GET("/ranking/achievements", achH.Ranking)

		player := api.Group("")
		player.Use(mw.Auth(cfg.Security, d.Cache),
			mw.PlayerRateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
		{
			player.POST("/session/logout", sessionH.Logout)
			player.POST("/session/refresh", sessionH.Refresh)

			player.GET("/quests", questH.List)
			player.POST("/quests/refresh", questH.Refresh)
			player.POST("/quests/:id/claim", questH.Claim)

			player.GET("/achievements", achH.List)
			player.GET("/achievements/claimable", achH.Claimable)
			player.GET("/achievements/rank", achH.Rank)
			player.POST("/achievements/:id/claim", achH.Claim)

			player.GET("/chains", chainH.List)
			player.GET("/chains/:id", chainH.Detail)
			player.POST("/chains/:id/start", chainH.Start)
			player.POST("/chains/:id/choose", chainH.Choose)
			player.POST("/chains/:id/claim", chainH.Claim)

			player.GET("/notifications", noteH.List)
			player.POST("/notifications/read", noteH.MarkRead)
		}

		admin := api.Group("/admin")
		admin.Use(mw.IPWhitelist(cfg.Server.AdminIPs), mw.AdminAuth(cfg.Server.AdminKey))
		{
			admin.GET("/metrics", adminH.Metrics)
			admin.GET("/engine", eventH.Stats)
			admin.GET("/scheduler", adminH.ListSchedulerTasks)
			admin.GET("/audit", adminH.AuditLog)
			admin.POST("/players", adminH.CreatePlayer)
			admin.POST("/players/:player_id/quests/:quest_id", adminH.AssignQuest)
			admin.POST("/sessions/:player_id", sessionH.Issue)
			admin.POST("/ranking/rebuild", adminH.RebuildRanking)
		}
	}

	if d.PubSub != nil {
		sseH := sse.NewHandler(d.PubSub, d.Cache, cfg.Security, d.Logger)
		r.GET("/sse", sseH.ServeSSE)
	}
	return r
}
