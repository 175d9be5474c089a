// Package reward applies goal rewards to a player's profile.
package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/goalerr"
	"github.com/kasuganosora/textrpg/game/uow"
	"github.com/kasuganosora/textrpg/model"
	"github.com/kasuganosora/textrpg/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Grant is everything one claim hands out.
type Grant struct {
	PlayerID int64
	Source   string // e.g. "quest:gather_ore"
	Rewards  []catalog.Reward
	Unlocks  []catalog.Unlock
}

// Result summarizes an applied grant.
type Result struct {
	Gold         int64 `json:"gold,omitempty"`
	Exp          int64 `json:"exp,omitempty"`
	Items        int   `json:"items,omitempty"`
	Level        int   `json:"level"`
	LevelsGained int   `json:"levels_gained,omitempty"`
}

// Applier grants rewards. Implementations must either apply the whole grant
// or return an error; claims roll back on error.
type Applier interface {
	Apply(ctx context.Context, g Grant) (*Result, error)
}

// Service is the Applier backed by the player tables.
type Service struct {
	db     *gorm.DB
	hooks  *hook.HookCenter
	logger *zap.Logger
}

// NewService creates a reward Service. hooks may be nil.
func NewService(db *gorm.DB, hooks *hook.HookCenter, logger *zap.Logger) *Service {
	return &Service{db: db, hooks: hooks, logger: logger}
}

// Apply adds gold, experience (levelling up as thresholds are passed),
// items, titles and unlocks in the caller's unit of work.
func (s *Service) Apply(ctx context.Context, g Grant) (*Result, error) {
	db := uow.DB(ctx, s.db)

	var p model.Player
	if err := db.First(&p, g.PlayerID).Error; err != nil {
		if goalerr.IsRecordNotFound(err) {
			return nil, goalerr.Reward(goalerr.NotFoundf("player", fmt.Sprint(g.PlayerID)))
		}
		return nil, goalerr.Reward(err)
	}

	res := &Result{}
	startLevel := p.Level
	for _, r := range g.Rewards {
		switch r.Kind {
		case catalog.RewardGold:
			p.Gold += int64(r.Amount)
			res.Gold += int64(r.Amount)
		case catalog.RewardExperience:
			p.Exp += int64(r.Amount)
			res.Exp += int64(r.Amount)
			levelUp(&p)
		case catalog.RewardItem:
			qty := max(r.Amount, 1)
			if err := addItem(db, g.PlayerID, r.ItemID, qty); err != nil {
				return nil, goalerr.Reward(err)
			}
			res.Items += qty
		case catalog.RewardTitle:
			if err := unlock(db, g.PlayerID, catalog.UnlockTitle, r.ItemID, g.Source); err != nil {
				return nil, goalerr.Reward(err)
			}
		default:
			return nil, goalerr.Reward(fmt.Errorf("unknown reward kind %q", r.Kind))
		}
	}
	for _, u := range g.Unlocks {
		if err := unlock(db, g.PlayerID, u.Kind, u.Value, g.Source); err != nil {
			return nil, goalerr.Reward(err)
		}
	}

	if err := db.Model(&p).Updates(map[string]interface{}{
		"gold":  p.Gold,
		"exp":   p.Exp,
		"level": p.Level,
	}).Error; err != nil {
		return nil, goalerr.Reward(err)
	}
	res.Level = p.Level
	res.LevelsGained = p.Level - startLevel

	if res.LevelsGained > 0 && s.hooks != nil {
		ev := hook.LevelUpEvent{PlayerID: g.PlayerID, From: startLevel, To: p.Level}
		uow.AfterCommit(ctx, func(ctx context.Context) {
			if _, err := s.hooks.Trigger(ctx, hook.OnPlayerLevelUp, ev); err != nil {
				s.logger.Warn("level-up hook failed", zap.Int64("player_id", ev.PlayerID), zap.Error(err))
			}
		})
	}

	s.logger.Info("rewards applied",
		zap.Int64("player_id", g.PlayerID),
		zap.String("source", g.Source),
		zap.Int64("gold", res.Gold),
		zap.Int64("exp", res.Exp),
		zap.Int("levels_gained", res.LevelsGained))
	return res, nil
}

// levelUp consumes experience for every level the player can now leave.
func levelUp(p *model.Player) {
	if p.Level < 1 {
		p.Level = 1
	}
	for p.Exp >= model.NextLevelExp(p.Level) {
		p.Exp -= model.NextLevelExp(p.Level)
		p.Level++
	}
}

func addItem(db *gorm.DB, playerID int64, itemID string, qty int) error {
	if itemID == "" {
		return errors.New("item reward without item id")
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "item_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"qty": gorm.Expr("qty + ?", qty), "updated_at": time.Now()}),
	}).Create(&model.InventoryItem{PlayerID: playerID, ItemID: itemID, Qty: qty}).Error
}

func unlock(db *gorm.DB, playerID int64, kind catalog.UnlockKind, value, source string) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.PlayerUnlock{PlayerID: playerID, Kind: string(kind), Value: value, Source: source}).Error
}
