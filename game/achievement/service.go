// Package achievement tracks long-running, optionally tiered, achievements.
package achievement

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kasuganosora/textrpg/cache"
	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/goalerr"
	"github.com/kasuganosora/textrpg/game/notify"
	"github.com/kasuganosora/textrpg/game/progress"
	"github.com/kasuganosora/textrpg/game/reward"
	"github.com/kasuganosora/textrpg/game/uow"
	"github.com/kasuganosora/textrpg/model"
	"github.com/kasuganosora/textrpg/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RankingKey is the sorted set of achievement points per player.
const RankingKey = "ranking:achievements"

// Service handles achievement progress and claims.
type Service struct {
	db       *gorm.DB
	catalog  catalog.Store
	runner   *uow.Runner
	rewards  reward.Applier
	notifier notify.Sink
	hooks    *hook.HookCenter
	cache    cache.Cache
	tracker  progress.Tracker
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates an achievement Service. c may be nil to disable the
// leaderboard.
func NewService(db *gorm.DB, store catalog.Store, runner *uow.Runner, rewards reward.Applier,
	notifier notify.Sink, hooks *hook.HookCenter, c cache.Cache, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		db:       db,
		catalog:  store,
		runner:   runner,
		rewards:  rewards,
		notifier: notifier,
		hooks:    hooks,
		cache:    c,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source.
func (svc *Service) SetClock(now func() time.Time) {
	svc.now = now
}

// Unlock reports one tier (or a flat achievement) reached.
type Unlock struct {
	AchievementID string    `json:"achievement_id"`
	Name          string    `json:"name"`
	Tier          int       `json:"tier,omitempty"`
	Progress      int       `json:"progress"`
	Completed     bool      `json:"completed"`
	At            time.Time `json:"at"`
}

// ClaimResult reports the rewards granted by a claim.
type ClaimResult struct {
	AchievementID string           `json:"achievement_id"`
	Tiers         []int            `json:"tiers,omitempty"`
	Rewards       []catalog.Reward `json:"rewards"`
	Applied       *reward.Result   `json:"applied"`
}

// tiers returns the number of tiers, counting a flat achievement as one.
func tiers(def *catalog.AchievementDef) int {
	if def.Tiered() {
		return len(def.Tiers)
	}
	return 1
}

func threshold(def *catalog.AchievementDef, tier int) int {
	if def.Tiered() {
		return def.Tiers[tier-1].Threshold
	}
	return def.Requirement.Threshold
}

func tierReward(def *catalog.AchievementDef, tier int) catalog.Reward {
	if def.Tiered() {
		return def.Tiers[tier-1].Reward
	}
	return def.Reward
}

// UpdateProgress feeds an event to every active achievement it matches and
// returns the tiers it unlocked. One event can cross several tiers.
func (svc *Service) UpdateProgress(ctx context.Context, playerID int64, ev progress.Event) ([]Unlock, error) {
	if ev.Quantity <= 0 {
		return nil, nil
	}
	var defs []*catalog.AchievementDef
	var ids []string
	for _, def := range svc.catalog.Achievements() {
		if def.Active && def.Requirement.Matches(ev.Kind, ev.Target) {
			defs = append(defs, def)
			ids = append(ids, def.ID)
		}
	}
	if len(defs) == 0 {
		return nil, nil
	}

	var out []Unlock
	err := svc.runner.Do(ctx, playerID, func(ctx context.Context) error {
		db := uow.DB(ctx, svc.db)
		var recs []model.AchievementProgress
		if err := db.Where("player_id = ? AND achievement_id IN ?", playerID, ids).Find(&recs).Error; err != nil {
			return goalerr.Storage("load achievements", err)
		}
		byID := make(map[string]*model.AchievementProgress, len(recs))
		for i := range recs {
			byID[recs[i].AchievementID] = &recs[i]
		}

		now := svc.now()
		goals := make([]progress.Goal, 0, len(defs))
		for _, def := range defs {
			rec := byID[def.ID]
			if rec == nil {
				rec = &model.AchievementProgress{PlayerID: playerID, AchievementID: def.ID}
			}
			goals = append(goals, newGoal(def, rec))
		}
		changed, _ := svc.tracker.ApplyAll(goals, ev, now)

		points := 0
		for _, g := range changed {
			unlocks, err := svc.advance(db, g.(*achievementGoal), now)
			if err != nil {
				return err
			}
			points += len(unlocks)
			out = append(out, unlocks...)
		}

		if len(out) > 0 {
			unlocked := append([]Unlock(nil), out...)
			uow.AfterCommit(ctx, func(ctx context.Context) {
				svc.announce(ctx, playerID, unlocked, points)
			})
		}
		return nil
	})
	return out, err
}

// advance unlocks the tiers the goal's new progress reached and persists
// the record. The tier column guards the update so a tier is unlocked at
// most once.
func (svc *Service) advance(db *gorm.DB, g *achievementGoal, now time.Time) ([]Unlock, error) {
	def, rec, oldTier := g.def, g.rec, g.oldTier

	var unlocks []Unlock
	total := tiers(def)
	for rec.CurrentTier < total && rec.Progress >= threshold(def, rec.CurrentTier+1) {
		rec.CurrentTier++
		u := Unlock{AchievementID: def.ID, Name: def.Name, Progress: rec.Progress, At: now}
		if def.Tiered() {
			u.Tier = rec.CurrentTier
		}
		unlocks = append(unlocks, u)
	}
	if rec.CurrentTier == total {
		g.MarkCompleted(now)
		if len(unlocks) > 0 {
			unlocks[len(unlocks)-1].Completed = true
		}
	}

	if rec.ID == 0 {
		if err := db.Create(rec).Error; err != nil {
			return nil, goalerr.Storage("create achievement progress", err)
		}
		return unlocks, nil
	}
	res := db.Model(&model.AchievementProgress{}).
		Where("id = ? AND current_tier = ? AND completed = ?", rec.ID, oldTier, false).
		Updates(map[string]interface{}{
			"progress":     rec.Progress,
			"current_tier": rec.CurrentTier,
			"completed":    rec.Completed,
			"completed_at": rec.CompletedAt,
		})
	if res.Error != nil {
		return nil, goalerr.Storage("save achievement progress", res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, nil
	}
	return unlocks, nil
}

func (svc *Service) announce(ctx context.Context, playerID int64, unlocks []Unlock, points int) {
	for _, u := range unlocks {
		def, ok := svc.catalog.Achievement(u.AchievementID)
		if !ok {
			continue
		}
		svc.notifier.Notify(ctx, notify.AchievementUnlocked(playerID, def, u.Tier))
		svc.trigger(ctx, hook.OnAchievementUnlock, hook.AchievementEvent{PlayerID: playerID, AchievementID: u.AchievementID, Tier: u.Tier})
	}
	if svc.cache != nil && points > 0 {
		if _, err := svc.cache.ZIncrBy(ctx, RankingKey, float64(points), strconv.FormatInt(playerID, 10)); err != nil {
			svc.logger.Warn("update achievement ranking", zap.Int64("player_id", playerID), zap.Error(err))
		}
	}
	svc.logger.Info("achievements unlocked", zap.Int64("player_id", playerID), zap.Int("count", len(unlocks)))
}

func (svc *Service) trigger(ctx context.Context, event string, data interface{}) {
	if svc.hooks == nil {
		return
	}
	if _, err := svc.hooks.Trigger(ctx, event, data); err != nil {
		svc.logger.Warn("achievement hook failed", zap.String("event", event), zap.Error(err))
	}
}

// Claim grants the rewards of every reached tier not yet claimed.
func (svc *Service) Claim(ctx context.Context, playerID int64, achievementID string) (*ClaimResult, error) {
	def, ok := svc.catalog.Achievement(achievementID)
	if !ok {
		return nil, goalerr.NotFoundf("achievement", achievementID)
	}
	var out *ClaimResult
	err := svc.runner.Do(ctx, playerID, func(ctx context.Context) error {
		db := uow.DB(ctx, svc.db)
		var rec model.AchievementProgress
		if err := db.Where("player_id = ? AND achievement_id = ?", playerID, achievementID).First(&rec).Error; err != nil {
			if goalerr.IsRecordNotFound(err) {
				return goalerr.NotFoundf("achievement_progress", achievementID)
			}
			return goalerr.Storage("load achievement progress", err)
		}
		if rec.Claimed {
			return goalerr.New(goalerr.InvalidState, goalerr.CodeAlreadyRewarded, "achievement %s already claimed", achievementID).
				With("achievement_id", achievementID)
		}
		if rec.ClaimedTier >= rec.CurrentTier {
			return goalerr.New(goalerr.InvalidState, goalerr.CodeNotCompleted, "achievement %s has nothing to claim", achievementID).
				With("achievement_id", achievementID).
				With("progress", rec.Progress).
				With("next_threshold", threshold(def, min(rec.CurrentTier+1, tiers(def))))
		}

		now := svc.now()
		claimedAll := rec.Completed && rec.CurrentTier == tiers(def)
		res := db.Model(&model.AchievementProgress{}).
			Where("id = ? AND claimed_tier = ? AND claimed = ?", rec.ID, rec.ClaimedTier, false).
			Updates(map[string]interface{}{
				"claimed_tier": rec.CurrentTier,
				"claimed":      claimedAll,
				"claimed_at":   now,
			})
		if res.Error != nil {
			return goalerr.Storage("mark achievement claimed", res.Error)
		}
		if res.RowsAffected != 1 {
			return goalerr.New(goalerr.InvalidState, goalerr.CodeAlreadyRewarded, "achievement %s already claimed", achievementID)
		}

		result := &ClaimResult{AchievementID: achievementID}
		for tier := rec.ClaimedTier + 1; tier <= rec.CurrentTier; tier++ {
			if def.Tiered() {
				result.Tiers = append(result.Tiers, tier)
			}
			result.Rewards = append(result.Rewards, tierReward(def, tier))
		}
		applied, err := svc.rewards.Apply(ctx, reward.Grant{
			PlayerID: playerID,
			Source:   "achievement:" + achievementID,
			Rewards:  result.Rewards,
		})
		if err != nil {
			return goalerr.Reward(err)
		}
		result.Applied = applied
		out = result

		uow.AfterCommit(ctx, func(ctx context.Context) {
			svc.trigger(ctx, hook.OnAchievementClaimed, hook.AchievementEvent{PlayerID: playerID, AchievementID: achievementID, Tier: rec.CurrentTier})
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("achievement claimed",
		zap.Int64("player_id", playerID), zap.String("achievement_id", achievementID), zap.Int("rewards", len(out.Rewards)))
	return out, nil
}

// View is an achievement with the player's progress.
type View struct {
	AchievementID string              `json:"achievement_id"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Category      string              `json:"category"`
	Requirement   catalog.Requirement `json:"requirement"`
	Progress      int                 `json:"progress"`
	Goal          int                 `json:"goal"`
	CurrentTier   int                 `json:"current_tier"`
	TotalTiers    int                 `json:"total_tiers"`
	NextThreshold int                 `json:"next_threshold,omitempty"`
	Completed     bool                `json:"completed"`
	ClaimedTier   int                 `json:"claimed_tier"`
	Claimable     bool                `json:"claimable"`
	Claimed       bool                `json:"claimed"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
}

// ListProgress returns every active achievement with the player's progress,
// zero for those never advanced.
func (svc *Service) ListProgress(ctx context.Context, playerID int64) ([]View, error) {
	var recs []model.AchievementProgress
	if err := uow.DB(ctx, svc.db).Where("player_id = ?", playerID).Find(&recs).Error; err != nil {
		return nil, goalerr.Storage("list achievements", err)
	}
	byID := make(map[string]*model.AchievementProgress, len(recs))
	for i := range recs {
		byID[recs[i].AchievementID] = &recs[i]
	}
	var out []View
	for _, def := range svc.catalog.Achievements() {
		rec := byID[def.ID]
		if !def.Active && rec == nil {
			continue
		}
		if rec == nil {
			rec = &model.AchievementProgress{}
		}
		out = append(out, newView(def, rec))
	}
	return out, nil
}

// ListClaimable returns the achievements with unclaimed reached tiers.
func (svc *Service) ListClaimable(ctx context.Context, playerID int64) ([]View, error) {
	all, err := svc.ListProgress(ctx, playerID)
	if err != nil {
		return nil, err
	}
	var out []View
	for _, v := range all {
		if v.Claimable {
			out = append(out, v)
		}
	}
	return out, nil
}

func newView(def *catalog.AchievementDef, rec *model.AchievementProgress) View {
	total := tiers(def)
	v := View{
		AchievementID: def.ID,
		Name:          def.Name,
		Description:   def.Description,
		Category:      def.Category,
		Requirement:   def.Requirement,
		Progress:      rec.Progress,
		Goal:          def.Goal(),
		CurrentTier:   rec.CurrentTier,
		TotalTiers:    total,
		Completed:     rec.Completed,
		ClaimedTier:   rec.ClaimedTier,
		Claimable:     rec.ClaimedTier < rec.CurrentTier,
		Claimed:       rec.Claimed,
		CompletedAt:   rec.CompletedAt,
	}
	if !def.Tiered() {
		v.TotalTiers = 0
	}
	if rec.CurrentTier < total {
		v.NextThreshold = threshold(def, rec.CurrentTier+1)
	}
	return v
}

// RankEntry is one leaderboard row.
type RankEntry struct {
	Rank     int    `json:"rank"`
	PlayerID int64  `json:"player_id"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
}

// Ranking returns the top players by achievement points.
func (svc *Service) Ranking(ctx context.Context, limit int) ([]RankEntry, error) {
	if svc.cache == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	members, err := svc.cache.ZRevRange(ctx, RankingKey, 0, int64(limit-1))
	if err != nil {
		return nil, goalerr.Storage("read ranking", err)
	}
	ids := make([]int64, 0, len(members))
	out := make([]RankEntry, 0, len(members))
	for i, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		score, err := svc.cache.ZScore(ctx, RankingKey, m)
		if err != nil && !cache.IsNotFound(err) {
			return nil, goalerr.Storage("read ranking score", err)
		}
		ids = append(ids, id)
		out = append(out, RankEntry{Rank: i + 1, PlayerID: id, Points: int(score)})
	}
	if len(ids) > 0 {
		var players []model.Player
		if err := svc.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&players).Error; err != nil {
			return nil, goalerr.Storage("load ranking names", err)
		}
		names := make(map[int64]string, len(players))
		for _, p := range players {
			names[p.ID] = p.Name
		}
		for i := range out {
			out[i].Name = names[out[i].PlayerID]
		}
	}
	return out, nil
}

// Rank returns the player's own leaderboard position. Players without a
// single tier are not ranked.
func (svc *Service) Rank(ctx context.Context, playerID int64) (*RankEntry, error) {
	member := strconv.FormatInt(playerID, 10)
	if svc.cache == nil {
		return nil, goalerr.NotFoundf("ranking", member)
	}
	pos, err := svc.cache.ZRevRank(ctx, RankingKey, member)
	if cache.IsNotFound(err) {
		return nil, goalerr.NotFoundf("ranking", member)
	}
	if err != nil {
		return nil, goalerr.Storage("read rank", err)
	}
	score, err := svc.cache.ZScore(ctx, RankingKey, member)
	if err != nil && !cache.IsNotFound(err) {
		return nil, goalerr.Storage("read ranking score", err)
	}
	var p model.Player
	if err := svc.db.WithContext(ctx).Select("id", "name").First(&p, playerID).Error; err != nil {
		if goalerr.IsRecordNotFound(err) {
			return nil, goalerr.NotFoundf("player", member)
		}
		return nil, goalerr.Storage("load player", err)
	}
	return &RankEntry{Rank: int(pos) + 1, PlayerID: playerID, Name: p.Name, Points: int(score)}, nil
}

// RebuildRanking recomputes every player's points from the database. Used
// at startup and periodically so the cache converges after restarts.
func (svc *Service) RebuildRanking(ctx context.Context) (int, error) {
	if svc.cache == nil {
		return 0, nil
	}
	var rows []struct {
		PlayerID int64
		Points   int
	}
	err := svc.db.WithContext(ctx).Model(&model.AchievementProgress{}).
		Select("player_id, SUM(current_tier) AS points").
		Group("player_id").Scan(&rows).Error
	if err != nil {
		return 0, goalerr.Storage("sum achievement points", err)
	}
	for _, r := range rows {
		if err := svc.cache.ZAdd(ctx, RankingKey, float64(r.Points), strconv.FormatInt(r.PlayerID, 10)); err != nil {
			return 0, fmt.Errorf("rebuild ranking: %w", err)
		}
	}
	return len(rows), nil
}
