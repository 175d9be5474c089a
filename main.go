package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/textrpg/api/rest"
	"github.com/kasuganosora/textrpg/audit"
	"github.com/kasuganosora/textrpg/cache"
	"github.com/kasuganosora/textrpg/config"
	dbadapter "github.com/kasuganosora/textrpg/db"
	"github.com/kasuganosora/textrpg/game/achievement"
	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/chain"
	"github.com/kasuganosora/textrpg/game/notify"
	"github.com/kasuganosora/textrpg/game/progression"
	"github.com/kasuganosora/textrpg/game/quest"
	"github.com/kasuganosora/textrpg/game/reward"
	"github.com/kasuganosora/textrpg/game/uow"
	"github.com/kasuganosora/textrpg/logging"
	"github.com/kasuganosora/textrpg/model"
	"github.com/kasuganosora/textrpg/plugin/hook"
	"github.com/kasuganosora/textrpg/scheduler"
	"go.uber.org/zap"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	logger, closeLog, err := logging.New(cfg.Log, cfg.Server.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer closeLog()

	// Warn loudly if privileged endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Server.ServiceKey == "" {
		logger.Warn("server.service_key is not set; event intake is disabled")
	}

	// ---- Catalog ----
	store, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal("catalog", zap.String("path", cfg.Catalog.Path), zap.Error(err))
	}
	logger.Info("Catalog loaded",
		zap.Int("quests", len(store.Quests())),
		zap.Int("achievements", len(store.Achievements())),
		zap.Int("chains", len(store.Chains())))

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, audit.Options{}, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	pubsub, err := cache.NewPubSub(cfg.Cache)
	if err != nil {
		logger.Fatal("pubsub", zap.Error(err))
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Game Systems ----
	schedule, err := quest.NewSchedule(cfg.Game.DailyReset, cfg.Game.WeeklyReset, cfg.Game.ResetTimezone)
	if err != nil {
		logger.Fatal("quest reset schedule", zap.Error(err))
	}
	hooks := hook.NewHookCenter()
	runner := uow.NewRunner(db, c, cfg.Game.PlayerLockTimeout, logger)
	rewards := reward.NewService(db, hooks, logger)
	notifier := notify.NewService(db, pubsub, logger)
	quests := quest.NewService(db, store, runner, rewards, notifier, hooks, quest.Options{
		DailyCount:  cfg.Game.DailyCount,
		WeeklyCount: cfg.Game.WeeklyCount,
		Schedule:    schedule,
	}, logger)
	chains := chain.NewService(db, store, runner, quests, rewards, notifier, hooks, logger)
	achievements := achievement.NewService(db, store, runner, rewards, notifier, hooks, c, logger)
	engine := progression.NewEngine(db, runner, quests, chains, achievements, hooks, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger, schedule.Location())
	defer sched.Stop()

	if err := sched.AddCron("notification_prune", cfg.Game.PruneSchedule, func(ctx context.Context) {
		n, err := notifier.Prune(ctx, time.Now().Add(-cfg.Game.NotificationTTL))
		if err != nil {
			logger.Warn("notification prune failed", zap.Error(err))
			return
		}
		logger.Info("notifications pruned", zap.Int64("rows", n))
	}); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	if cfg.Game.RankingRebuild > 0 {
		sched.AddTicker("ranking_rebuild", cfg.Game.RankingRebuild, func(ctx context.Context) {
			if _, err := achievements.RebuildRanking(ctx); err != nil {
				logger.Warn("ranking rebuild failed", zap.Error(err))
			}
		})
	}

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := apirest.NewRouter(apirest.Deps{
		Config:       cfg,
		DB:           db,
		Cache:        c,
		PubSub:       pubsub,
		Engine:       engine,
		Quests:       quests,
		Achievements: achievements,
		Chains:       chains,
		Notify:       notifier,
		Audit:        auditSvc,
		Scheduler:    sched,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("Server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server", zap.Error(err))
	}
	logger.Info("Server stopped")
}
