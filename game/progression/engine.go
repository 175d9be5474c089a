// Package progression is the entry point for gameplay events. One Emit call
// updates quests, quest chains and achievements of a player in a single unit
// of work.
package progression

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/kasuganosora/textrpg/game/achievement"
	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/chain"
	"github.com/kasuganosora/textrpg/game/goalerr"
	"github.com/kasuganosora/textrpg/game/progress"
	"github.com/kasuganosora/textrpg/game/quest"
	"github.com/kasuganosora/textrpg/game/uow"
	"github.com/kasuganosora/textrpg/model"
	"github.com/kasuganosora/textrpg/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Outcome is everything one event changed.
type Outcome struct {
	Completed []quest.Completion   `json:"completed"`
	Chains    []chain.Outcome      `json:"chains"`
	Unlocks   []achievement.Unlock `json:"unlocks"`
}

// Stats are process-wide counters since start.
type Stats struct {
	Events      int64 `json:"events"`
	Completions int64 `json:"completions"`
	Unlocks     int64 `json:"unlocks"`
	Failures    int64 `json:"failures"`
}

// Engine routes gameplay events.
type Engine struct {
	db           *gorm.DB
	runner       *uow.Runner
	quests       *quest.Service
	chains       *chain.Service
	achievements *achievement.Service
	logger       *zap.Logger

	events      atomic.Int64
	completions atomic.Int64
	unlocks     atomic.Int64
	failures    atomic.Int64
}

// NewEngine wires the engine. Levels gained from rewards are fed back as
// level events.
func NewEngine(db *gorm.DB, runner *uow.Runner, quests *quest.Service, chains *chain.Service,
	achievements *achievement.Service, hooks *hook.HookCenter, logger *zap.Logger) *Engine {
	e := &Engine{
		db:           db,
		runner:       runner,
		quests:       quests,
		chains:       chains,
		achievements: achievements,
		logger:       logger,
	}
	if hooks != nil {
		hooks.Register(hook.OnPlayerLevelUp, 100, "progression", e.onLevelUp)
	}
	return e
}

// Emit applies one gameplay event for the player.
func (e *Engine) Emit(ctx context.Context, playerID int64, kind catalog.EventKind, target string, qty int) (*Outcome, error) {
	if !kind.External() {
		return nil, goalerr.New(goalerr.InvalidInput, "kind", "unknown event kind %q", kind).With("kind", string(kind))
	}
	if qty < 1 {
		return nil, goalerr.New(goalerr.InvalidInput, "quantity", "quantity must be at least 1").With("quantity", qty)
	}
	ev := progress.Event{Kind: kind, Target: strings.TrimSpace(target), Quantity: qty}
	e.events.Add(1)

	out := &Outcome{}
	err := e.runner.Do(ctx, playerID, func(ctx context.Context) error {
		var n int64
		if err := uow.DB(ctx, e.db).Model(&model.Player{}).Where("id = ?", playerID).Count(&n).Error; err != nil {
			return goalerr.Storage("load player", err)
		}
		if n == 0 {
			return goalerr.NotFoundf("player", fmt.Sprint(playerID))
		}

		completed, err := e.quests.RecordEvent(ctx, playerID, ev)
		if err != nil {
			return err
		}
		out.Completed = completed
		for _, c := range completed {
			outs, err := e.chains.OnQuestCompleted(ctx, playerID, c.QuestID)
			if err != nil {
				return err
			}
			out.Chains = append(out.Chains, outs...)
		}

		unlocks, err := e.achievements.UpdateProgress(ctx, playerID, ev)
		if err != nil {
			return err
		}
		out.Unlocks = unlocks
		for _, c := range completed {
			unlocks, err := e.achievements.UpdateProgress(ctx, playerID,
				progress.Event{Kind: catalog.KindQuest, Target: c.QuestID, Quantity: 1})
			if err != nil {
				return err
			}
			out.Unlocks = append(out.Unlocks, unlocks...)
		}
		return nil
	})
	if err != nil {
		e.failures.Add(1)
		return nil, err
	}
	e.completions.Add(int64(len(out.Completed)))
	e.unlocks.Add(int64(len(out.Unlocks)))

	if len(out.Completed) > 0 || len(out.Unlocks) > 0 {
		e.logger.Info("progress",
			zap.Int64("player_id", playerID),
			zap.String("kind", string(kind)),
			zap.String("target", ev.Target),
			zap.Int("quests_completed", len(out.Completed)),
			zap.Int("chains_moved", len(out.Chains)),
			zap.Int("achievements_unlocked", len(out.Unlocks)))
	}
	return out, nil
}

func (e *Engine) onLevelUp(ctx context.Context, event string, data interface{}) (interface{}, error) {
	ev, ok := data.(hook.LevelUpEvent)
	if !ok || ev.To <= ev.From {
		return data, nil
	}
	if _, err := e.Emit(ctx, ev.PlayerID, catalog.KindLevel, "", ev.To-ev.From); err != nil {
		e.logger.Warn("level event", zap.Int64("player_id", ev.PlayerID), zap.Error(err))
	}
	return data, nil
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Events:      e.events.Load(),
		Completions: e.completions.Load(),
		Unlocks:     e.unlocks.Load(),
		Failures:    e.failures.Load(),
	}
}
