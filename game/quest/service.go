// Package quest manages per-player quest records: assignment, progress from
// gameplay events, cadence refreshes and reward claims.
package quest

import (
	"context"
	"fmt"
	"sort"
	"time"

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

// Options tunes the cadence refresh.
type Options struct {
	DailyCount  int
	WeeklyCount int
	Schedule    *Schedule
}

// Service handles all quest operations.
type Service struct {
	db       *gorm.DB
	catalog  catalog.Store
	runner   *uow.Runner
	rewards  reward.Applier
	notifier notify.Sink
	hooks    *hook.HookCenter
	opts     Options
	tracker  progress.Tracker
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a new quest Service.
func NewService(db *gorm.DB, store catalog.Store, runner *uow.Runner, rewards reward.Applier,
	notifier notify.Sink, hooks *hook.HookCenter, opts Options, logger *zap.Logger) *Service {
	if opts.Schedule == nil {
		opts.Schedule = DefaultSchedule()
	}
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
		opts:     opts,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source.
func (svc *Service) SetClock(now func() time.Time) {
	svc.now = now
}

// Completion reports a quest that an event completed.
type Completion struct {
	QuestID     string    `json:"quest_id"`
	Title       string    `json:"title"`
	CompletedAt time.Time `json:"completed_at"`
}

// ClaimResult reports a granted quest reward.
type ClaimResult struct {
	QuestID string           `json:"quest_id"`
	Rewards []catalog.Reward `json:"rewards"`
	Applied *reward.Result   `json:"applied"`
}

func (svc *Service) def(questID string) (*catalog.QuestDef, error) {
	def, ok := svc.catalog.Quest(questID)
	if !ok {
		return nil, goalerr.NotFoundf("quest", questID)
	}
	return def, nil
}

func loadPlayer(db *gorm.DB, playerID int64) (*model.Player, error) {
	var p model.Player
	if err := db.First(&p, playerID).Error; err != nil {
		if goalerr.IsRecordNotFound(err) {
			return nil, goalerr.NotFoundf("player", fmt.Sprint(playerID))
		}
		return nil, goalerr.Storage("load player", err)
	}
	return &p, nil
}

func (svc *Service) record(db *gorm.DB, playerID int64, questID string) (*model.QuestProgress, error) {
	var rec model.QuestProgress
	err := db.Where("player_id = ? AND quest_id = ?", playerID, questID).First(&rec).Error
	if err != nil {
		if goalerr.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, goalerr.Storage("load quest progress", err)
	}
	return &rec, nil
}

// Get returns the player's record for a quest, or NotFound.
func (svc *Service) Get(ctx context.Context, playerID int64, questID string) (*model.QuestProgress, error) {
	rec, err := svc.record(uow.DB(ctx, svc.db), playerID, questID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, goalerr.NotFoundf("quest_progress", questID)
	}
	return rec, nil
}

// HasCompleted reports whether the player ever completed the quest.
func (svc *Service) HasCompleted(ctx context.Context, playerID int64, questID string) (bool, error) {
	var n int64
	err := uow.DB(ctx, svc.db).Model(&model.QuestCompletion{}).
		Where("player_id = ? AND quest_id = ?", playerID, questID).Count(&n).Error
	if err != nil {
		return false, goalerr.Storage("count quest completions", err)
	}
	return n > 0, nil
}

// Assign gives the player a fresh record for the quest. A record that is
// still running or waiting to be claimed yields DuplicateActive; rewarded
// and expired records are replaced.
func (svc *Service) Assign(ctx context.Context, playerID int64, questID string) (*model.QuestProgress, error) {
	var out *model.QuestProgress
	err := svc.runner.Do(ctx, playerID, func(ctx context.Context) error {
		def, err := svc.def(questID)
		if err != nil {
			return err
		}
		if !def.Active {
			return goalerr.New(goalerr.InvalidState, "inactive", "quest %s is not active", questID).With("quest_id", questID)
		}
		db := uow.DB(ctx, svc.db)
		if _, err := loadPlayer(db, playerID); err != nil {
			return err
		}
		now := svc.now()
		existing, err := svc.record(db, playerID, questID)
		if err != nil {
			return err
		}
		if existing != nil && !existing.Rewarded && !existing.Expired(now) {
			return goalerr.New(goalerr.DuplicateActive, "", "quest %s already held", questID).
				With("quest_id", questID).
				With("completed", existing.Completed)
		}

		rec := &model.QuestProgress{
			PlayerID:  playerID,
			QuestID:   questID,
			QuestType: string(def.Type),
			Counters:  toModel(progress.NewCounters(def.Requirements)),
			StartedAt: now,
			ExpiresAt: svc.opts.Schedule.ExpiresAt(def, now),
		}
		if existing != nil {
			rec.ID = existing.ID
			err = db.Save(rec).Error
		} else {
			err = db.Create(rec).Error
		}
		if err != nil {
			return goalerr.Storage("save quest progress", err)
		}
		svc.logger.Debug("quest assigned",
			zap.Int64("player_id", playerID), zap.String("quest_id", questID))
		out = rec
		return nil
	})
	return out, err
}

// RecordEvent advances every running quest of the player that the event
// matches and returns the quests it completed. Completion is signalled at
// most once per record.
func (svc *Service) RecordEvent(ctx context.Context, playerID int64, ev progress.Event) ([]Completion, error) {
	var out []Completion
	err := svc.runner.Do(ctx, playerID, func(ctx context.Context) error {
		db := uow.DB(ctx, svc.db)
		now := svc.now()

		var recs []model.QuestProgress
		if err := db.Where("player_id = ? AND completed = ?", playerID, false).Find(&recs).Error; err != nil {
			return goalerr.Storage("load quest progress", err)
		}
		goals := make([]progress.Goal, 0, len(recs))
		for i := range recs {
			rec := &recs[i]
			if rec.Expired(now) {
				continue
			}
			def, ok := svc.catalog.Quest(rec.QuestID)
			if !ok {
				continue
			}
			goals = append(goals, &questGoal{rec: rec, def: def})
		}

		changed, _ := svc.tracker.ApplyAll(goals, ev, now)
		for _, g := range changed {
			qg := g.(*questGoal)
			justCompleted, err := svc.persist(db, qg.rec)
			if err != nil {
				return err
			}
			if !justCompleted {
				continue
			}
			if err := db.Create(&model.QuestCompletion{
				PlayerID:    playerID,
				QuestID:     qg.rec.QuestID,
				CompletedAt: now,
			}).Error; err != nil {
				return goalerr.Storage("record quest completion", err)
			}
			out = append(out, Completion{QuestID: qg.def.ID, Title: qg.def.Title, CompletedAt: now})
			svc.afterComplete(ctx, playerID, qg.def)
		}
		return nil
	})
	return out, err
}

// persist writes the record's counters. The completion flag flips through a
// conditional update so only one writer ever observes the transition.
func (svc *Service) persist(db *gorm.DB, rec *model.QuestProgress) (bool, error) {
	if !rec.Completed {
		err := db.Model(&model.QuestProgress{}).Where("id = ?", rec.ID).
			Update("counters", rec.Counters).Error
		return false, goalerr.Storage("save quest counters", err)
	}
	res := db.Model(&model.QuestProgress{}).
		Where("id = ? AND completed = ?", rec.ID, false).
		Updates(map[string]interface{}{
			"counters":     rec.Counters,
			"completed":    true,
			"completed_at": rec.CompletedAt,
		})
	if res.Error != nil {
		return false, goalerr.Storage("complete quest", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (svc *Service) afterComplete(ctx context.Context, playerID int64, def *catalog.QuestDef) {
	uow.AfterCommit(ctx, func(ctx context.Context) {
		svc.notifier.Notify(ctx, notify.QuestCompleted(playerID, def))
		svc.trigger(ctx, hook.OnQuestComplete, hook.QuestEvent{PlayerID: playerID, QuestID: def.ID})
	})
}

func (svc *Service) trigger(ctx context.Context, event string, data interface{}) {
	if svc.hooks == nil {
		return
	}
	if _, err := svc.hooks.Trigger(ctx, event, data); err != nil {
		svc.logger.Warn("quest hook failed", zap.String("event", event), zap.Error(err))
	}
}

// Claim grants a completed quest's rewards exactly once. If the reward
// cannot be applied nothing changes.
func (svc *Service) Claim(ctx context.Context, playerID int64, questID string) (*ClaimResult, error) {
	var out *ClaimResult
	err := svc.runner.Do(ctx, playerID, func(ctx context.Context) error {
		db := uow.DB(ctx, svc.db)
		rec, err := svc.record(db, playerID, questID)
		if err != nil {
			return err
		}
		if rec == nil {
			return goalerr.NotFoundf("quest_progress", questID)
		}
		if rec.Rewarded {
			return goalerr.New(goalerr.InvalidState, goalerr.CodeAlreadyRewarded, "quest %s already rewarded", questID).
				With("quest_id", questID)
		}
		if !rec.Completed {
			if rec.Expired(svc.now()) {
				return goalerr.New(goalerr.InvalidState, goalerr.CodeExpired, "quest %s expired before completion", questID).
					With("quest_id", questID).
					With("expires_at", rec.ExpiresAt)
			}
			return goalerr.New(goalerr.InvalidState, goalerr.CodeNotCompleted, "quest %s not completed", questID).
				With("quest_id", questID)
		}
		def, err := svc.def(questID)
		if err != nil {
			return err
		}

		now := svc.now()
		res := db.Model(&model.QuestProgress{}).
			Where("id = ? AND rewarded = ?", rec.ID, false).
			Updates(map[string]interface{}{"rewarded": true, "rewarded_at": now})
		if res.Error != nil {
			return goalerr.Storage("mark quest rewarded", res.Error)
		}
		if res.RowsAffected != 1 {
			return goalerr.New(goalerr.InvalidState, goalerr.CodeAlreadyRewarded, "quest %s already rewarded", questID)
		}

		applied, err := svc.rewards.Apply(ctx, reward.Grant{
			PlayerID: playerID,
			Source:   "quest:" + questID,
			Rewards:  def.Rewards,
		})
		if err != nil {
			return goalerr.Reward(err)
		}
		out = &ClaimResult{QuestID: questID, Rewards: def.Rewards, Applied: applied}

		uow.AfterCommit(ctx, func(ctx context.Context) {
			svc.trigger(ctx, hook.OnQuestClaimed, hook.QuestEvent{PlayerID: playerID, QuestID: questID})
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("quest claimed", zap.Int64("player_id", playerID), zap.String("quest_id", questID))
	return out, nil
}

// ListActive returns the player's unrewarded quests, optionally of one type.
func (svc *Service) ListActive(ctx context.Context, playerID int64, typeFilter catalog.QuestType) ([]View, error) {
	db := uow.DB(ctx, svc.db)
	q := db.Where("player_id = ? AND rewarded = ?", playerID, false)
	if typeFilter != "" {
		q = q.Where("quest_type = ?", string(typeFilter))
	}
	var recs []model.QuestProgress
	if err := q.Order("started_at ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, goalerr.Storage("list quests", err)
	}
	now := svc.now()
	out := make([]View, 0, len(recs))
	for i := range recs {
		def, ok := svc.catalog.Quest(recs[i].QuestID)
		if !ok {
			continue
		}
		out = append(out, newView(&recs[i], def, now))
	}
	return out, nil
}

// RefreshDaily starts a new cadence cycle for the player: expired daily and
// weekly records are dropped (unclaimed completions are kept), then the
// player is topped up to the configured number of quests per cadence.
func (svc *Service) RefreshDaily(ctx context.Context, playerID int64) ([]View, error) {
	var out []View
	err := svc.runner.Do(ctx, playerID, func(ctx context.Context) error {
		db := uow.DB(ctx, svc.db)
		p, err := loadPlayer(db, playerID)
		if err != nil {
			return err
		}
		now := svc.now()

		var recs []model.QuestProgress
		if err := db.Where("player_id = ? AND quest_type IN ?", playerID,
			[]string{string(catalog.QuestDaily), string(catalog.QuestWeekly)}).Find(&recs).Error; err != nil {
			return goalerr.Storage("load quest progress", err)
		}
		held := make(map[catalog.QuestType]int)
		var stale []int64
		for _, rec := range recs {
			if rec.ExpiresAt != nil && !now.Before(*rec.ExpiresAt) {
				if !rec.Completed || rec.Rewarded {
					stale = append(stale, rec.ID)
				}
				continue
			}
			held[catalog.QuestType(rec.QuestType)]++
		}
		if len(stale) > 0 {
			if err := db.Where("id IN ?", stale).Delete(&model.QuestProgress{}).Error; err != nil {
				return goalerr.Storage("purge expired quests", err)
			}
		}

		// Any quest with a surviving record cannot be offered again this cycle.
		var heldIDs []string
		if err := db.Model(&model.QuestProgress{}).Where("player_id = ?", playerID).
			Pluck("quest_id", &heldIDs).Error; err != nil {
			return goalerr.Storage("load quest ids", err)
		}
		exclude := make(map[string]bool, len(heldIDs))
		for _, id := range heldIDs {
			exclude[id] = true
		}

		for _, cadence := range []struct {
			typ   catalog.QuestType
			count int
		}{
			{catalog.QuestDaily, svc.opts.DailyCount},
			{catalog.QuestWeekly, svc.opts.WeeklyCount},
		} {
			want := cadence.count - held[cadence.typ]
			for _, def := range svc.candidates(cadence.typ, p.Level, exclude) {
				if want <= 0 {
					break
				}
				rec, err := svc.Assign(ctx, playerID, def.ID)
				if err != nil {
					return err
				}
				exclude[def.ID] = true
				out = append(out, newView(rec, def, now))
				want--
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		svc.logger.Info("quests refreshed", zap.Int64("player_id", playerID), zap.Int("assigned", len(out)))
	}
	return out, nil
}

// candidates lists assignable quests of a cadence, highest level first,
// then newest, then by id.
func (svc *Service) candidates(t catalog.QuestType, level int, exclude map[string]bool) []*catalog.QuestDef {
	var out []*catalog.QuestDef
	for _, def := range svc.catalog.Quests() {
		if def.Type != t || !def.Active || def.Level > level || exclude[def.ID] {
			continue
		}
		out = append(out, def)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		if !a.Added.Equal(b.Added) {
			return a.Added.After(b.Added)
		}
		return a.ID < b.ID
	})
	return out
}
