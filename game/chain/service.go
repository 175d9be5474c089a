// Package chain runs branching storylines of quests. A chain attempt moves
// step by step as its current quest completes, pauses at branches until the
// player chooses, and pays its rewards once when claimed.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/goalerr"
	"github.com/kasuganosora/textrpg/game/notify"
	"github.com/kasuganosora/textrpg/game/quest"
	"github.com/kasuganosora/textrpg/game/reward"
	"github.com/kasuganosora/textrpg/game/uow"
	"github.com/kasuganosora/textrpg/model"
	"github.com/kasuganosora/textrpg/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const hookName = "chain"

// Service handles quest chain operations.
type Service struct {
	db       *gorm.DB
	catalog  catalog.Store
	runner   *uow.Runner
	quests   *quest.Service
	rewards  reward.Applier
	notifier notify.Sink
	hooks    *hook.HookCenter
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a chain Service and subscribes it to quest claims.
func NewService(db *gorm.DB, store catalog.Store, runner *uow.Runner, quests *quest.Service,
	rewards reward.Applier, notifier notify.Sink, hooks *hook.HookCenter, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	svc := &Service{
		db:       db,
		catalog:  store,
		runner:   runner,
		quests:   quests,
		rewards:  rewards,
		notifier: notifier,
		hooks:    hooks,
		now:      time.Now,
		logger:   logger,
	}
	if hooks != nil {
		hooks.Register(hook.OnQuestClaimed, 100, hookName, svc.onQuestClaimed)
	}
	return svc
}

// SetClock replaces the time source.
func (svc *Service) SetClock(now func() time.Time) {
	svc.now = now
}

// Outcome describes where an attempt stands after a command.
type Outcome struct {
	ChainID        string   `json:"chain_id"`
	Status         string   `json:"status"`
	Step           int      `json:"step"`
	QuestID        string   `json:"quest_id,omitempty"`
	Advanced       bool     `json:"advanced"`
	RequiresChoice bool     `json:"requires_choice"`
	Choices        []string `json:"choices,omitempty"`
	Completed      bool     `json:"completed"`
}

// ClaimResult reports granted chain rewards.
type ClaimResult struct {
	ChainID string           `json:"chain_id"`
	Attempt int              `json:"attempt"`
	Rewards []catalog.Reward `json:"rewards"`
	Unlocks []catalog.Unlock `json:"unlocks"`
	Applied *reward.Result   `json:"applied"`
}

func (svc *Service) def(chainID string) (*catalog.ChainDef, error) {
	def, ok := svc.catalog.Chain(chainID)
	if !ok {
		return nil, goalerr.NotFoundf("chain", chainID)
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

// latest returns the newest attempt, optionally restricted to statuses.
func latest(db *gorm.DB, playerID int64, chainID string, statuses ...string) (*model.ChainProgress, error) {
	q := db.Where("player_id = ? AND chain_id = ?", playerID, chainID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var rec model.ChainProgress
	if err := q.Order("attempt DESC").First(&rec).Error; err != nil {
		if goalerr.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, goalerr.Storage("load chain progress", err)
	}
	return &rec, nil
}

func save(db *gorm.DB, rec *model.ChainProgress) error {
	return goalerr.Storage("save chain progress", db.Save(rec).Error)
}

// Start opens a new attempt at the chain and assigns its first quest.
func (svc *Service) Start(ctx context.Context, playerID int64, chainID string) (*Outcome, error) {
	var out *Outcome
	err := svc.runner.Do(ctx, playerID, func(ctx context.Context) error {
		def, err := svc.def(chainID)
		if err != nil {
			return err
		}
		if !def.Active {
			return goalerr.New(goalerr.InvalidState, "inactive", "chain %s is not active", chainID).With("chain_id", chainID)
		}
		db := uow.DB(ctx, svc.db)
		p, err := loadPlayer(db, playerID)
		if err != nil {
			return err
		}

		prev, err := latest(db, playerID, chainID)
		if err != nil {
			return err
		}
		attempt := 1
		if prev != nil {
			switch prev.Status {
			case model.ChainStatusActive, model.ChainStatusOnHold:
				return goalerr.New(goalerr.DuplicateActive, "", "chain %s already in progress", chainID).
					With("chain_id", chainID).
					With("step", prev.CurrentStep)
			case model.ChainStatusCompleted:
				if !def.Repeatable || !prev.Rewarded {
					return goalerr.New(goalerr.InvalidState, goalerr.CodeAlreadyCompleted, "chain %s already completed", chainID).
						With("chain_id", chainID).
						With("rewarded", prev.Rewarded)
				}
			}
			attempt = prev.Attempt + 1
			if err := svc.checkStepsClaimed(ctx, playerID, def); err != nil {
				return err
			}
		}

		if err := svc.checkPrerequisites(ctx, db, p, def); err != nil {
			return err
		}

		first := def.Steps[0]
		now := svc.now()
		rec := &model.ChainProgress{
			PlayerID:       playerID,
			ChainID:        chainID,
			Attempt:        attempt,
			CurrentStep:    first.Number,
			CurrentQuestID: &first.QuestID,
			Status:         model.ChainStatusActive,
			StartedAt:      now,
		}
		if err := db.Create(rec).Error; err != nil {
			return goalerr.Storage("create chain progress", err)
		}
		uow.AfterCommit(ctx, func(ctx context.Context) {
			svc.notifier.Notify(ctx, notify.ChainStarted(playerID, def))
		})

		out = &Outcome{ChainID: chainID}
		done, err := svc.assign(ctx, playerID, first.QuestID)
		if err != nil {
			return err
		}
		if done {
			if err := svc.advance(ctx, db, def, rec, first.QuestID, out); err != nil {
				return err
			}
		}
		fill(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("chain started",
		zap.Int64("player_id", playerID), zap.String("chain_id", chainID), zap.Int("step", out.Step))
	return out, nil
}

// assign hands out a step quest. A record the player already holds is kept;
// done reports whether it is already complete.
func (svc *Service) assign(ctx context.Context, playerID int64, questID string) (bool, error) {
	_, err := svc.quests.Assign(ctx, playerID, questID)
	if err == nil {
		return false, nil
	}
	var ge *goalerr.Error
	if errors.As(err, &ge) && ge.Kind == goalerr.DuplicateActive {
		done, _ := ge.Details["completed"].(bool)
		return done, nil
	}
	return false, err
}

// checkStepsClaimed refuses a repeat attempt while a step quest from an
// earlier attempt is completed but unclaimed. That record would otherwise be
// credited to the new attempt without any new progress.
func (svc *Service) checkStepsClaimed(ctx context.Context, playerID int64, def *catalog.ChainDef) error {
	for _, step := range def.Steps {
		qp, err := svc.quests.Get(ctx, playerID, step.QuestID)
		if errors.Is(err, goalerr.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if qp.Completed && !qp.Rewarded {
			return goalerr.New(goalerr.InvalidState, goalerr.CodeUnclaimedQuest,
				"claim quest %s before repeating chain %s", step.QuestID, def.ID).
				With("chain_id", def.ID).
				With("quest_id", step.QuestID).
				With("step", step.Number)
		}
	}
	return nil
}

// Advance moves the player's active attempt past completedQuestID. It does
// nothing unless that quest is the attempt's current quest, so completion
// and claim signals for the same quest advance the chain once.
func (svc *Service) Advance(ctx context.Context, playerID int64, chainID, completedQuestID string) (*Outcome, error) {
	var out *Outcome
	err := svc.runner.Do(ctx, playerID, func(ctx context.Context) error {
		def, err := svc.def(chainID)
		if err != nil {
			return err
		}
		db := uow.DB(ctx, svc.db)
		rec, err := latest(db, playerID, chainID, model.ChainStatusActive)
		if err != nil || rec == nil {
			return err
		}
		if !current(rec, completedQuestID) {
			return nil
		}
		qp, err := svc.quests.Get(ctx, playerID, completedQuestID)
		if err != nil {
			return err
		}
		if !qp.Completed {
			return goalerr.New(goalerr.InvalidState, goalerr.CodeNotCompleted, "quest %s not completed", completedQuestID).
				With("quest_id", completedQuestID)
		}
		o := &Outcome{ChainID: chainID}
		if err := svc.advance(ctx, db, def, rec, completedQuestID, o); err != nil {
			return err
		}
		fill(o, rec)
		out = o
		return nil
	})
	return out, err
}

// OnQuestCompleted advances every chain whose current quest is questID and
// returns the outcomes of those that moved.
func (svc *Service) OnQuestCompleted(ctx context.Context, playerID int64, questID string) ([]Outcome, error) {
	var outs []Outcome
	for _, def := range svc.catalog.ChainsWithQuest(questID) {
		o, err := svc.Advance(ctx, playerID, def.ID, questID)
		if err != nil {
			return nil, err
		}
		if o != nil && o.Advanced {
			outs = append(outs, *o)
		}
	}
	return outs, nil
}

func (svc *Service) onQuestClaimed(ctx context.Context, event string, data interface{}) (interface{}, error) {
	ev, ok := data.(hook.QuestEvent)
	if !ok {
		return data, nil
	}
	if _, err := svc.OnQuestCompleted(ctx, ev.PlayerID, ev.QuestID); err != nil {
		svc.logger.Warn("advance chain on claim", zap.Int64("player_id", ev.PlayerID),
			zap.String("quest_id", ev.QuestID), zap.Error(err))
	}
	return data, nil
}

func current(rec *model.ChainProgress, questID string) bool {
	return rec.Status == model.ChainStatusActive && !rec.AwaitingChoice &&
		rec.CurrentQuestID != nil && *rec.CurrentQuestID == questID
}

// advance records the finished step and moves on. It keeps going while the
// next step's quest turns out to be complete already.
func (svc *Service) advance(ctx context.Context, db *gorm.DB, def *catalog.ChainDef, rec *model.ChainProgress,
	questID string, out *Outcome) error {
	for guard := 0; guard <= len(def.Steps) && current(rec, questID); guard++ {
		now := svc.now()
		step := rec.CurrentStep
		rec.CompletedSteps = append(rec.CompletedSteps, model.CompletedStep{Step: step, QuestID: questID, CompletedAt: now})
		out.Advanced = true

		if br, ok := def.BranchAfter(step); ok {
			rec.AwaitingChoice = true
			if err := save(db, rec); err != nil {
				return err
			}
			labels := br.Labels()
			out.RequiresChoice = true
			out.Choices = labels
			uow.AfterCommit(ctx, func(ctx context.Context) {
				svc.notifier.Notify(ctx, notify.ChainChoice(rec.PlayerID, def, labels))
			})
			return nil
		}

		next, err := svc.moveTo(ctx, db, def, rec, step+1)
		if err != nil || next == "" {
			return err
		}
		questID = next
	}
	return nil
}

// moveTo puts the attempt on step number, or completes it when the chain has
// no such step. It returns the new quest id when that quest is already done.
func (svc *Service) moveTo(ctx context.Context, db *gorm.DB, def *catalog.ChainDef, rec *model.ChainProgress, number int) (string, error) {
	ev := hook.ChainEvent{PlayerID: rec.PlayerID, ChainID: def.ID, Step: number}
	st, ok := def.Step(number)
	if !ok {
		now := svc.now()
		rec.Status = model.ChainStatusCompleted
		rec.CurrentQuestID = nil
		rec.AwaitingChoice = false
		rec.CompletedAt = &now
		if err := save(db, rec); err != nil {
			return "", err
		}
		ev.Step = rec.CurrentStep
		uow.AfterCommit(ctx, func(ctx context.Context) {
			svc.notifier.Notify(ctx, notify.ChainCompleted(rec.PlayerID, def))
			svc.trigger(ctx, hook.OnChainComplete, ev)
		})
		svc.logger.Info("chain completed",
			zap.Int64("player_id", rec.PlayerID), zap.String("chain_id", def.ID), zap.Int("attempt", rec.Attempt))
		return "", nil
	}

	questID := st.QuestID
	rec.CurrentStep = number
	rec.CurrentQuestID = &questID
	rec.AwaitingChoice = false
	if err := save(db, rec); err != nil {
		return "", err
	}
	ev.QuestID = questID
	uow.AfterCommit(ctx, func(ctx context.Context) {
		svc.notifier.Notify(ctx, notify.ChainStep(rec.PlayerID, def, number, questID))
		svc.trigger(ctx, hook.OnChainAdvance, ev)
	})

	done, err := svc.assign(ctx, rec.PlayerID, questID)
	if err != nil || !done {
		return "", err
	}
	return questID, nil
}

func (svc *Service) trigger(ctx context.Context, event string, data interface{}) {
	if svc.hooks == nil {
		return
	}
	if _, err := svc.hooks.Trigger(ctx, event, data); err != nil {
		svc.logger.Warn("chain hook failed", zap.String("event", event), zap.Error(err))
	}
}

// ChooseBranch resolves a pending branch with the given label, matched
// without regard to case. An unknown label changes nothing.
func (svc *Service) ChooseBranch(ctx context.Context, playerID int64, chainID, label string) (*Outcome, error) {
	var out *Outcome
	err := svc.runner.Do(ctx, playerID, func(ctx context.Context) error {
		def, err := svc.def(chainID)
		if err != nil {
			return err
		}
		db := uow.DB(ctx, svc.db)
		rec, err := latest(db, playerID, chainID, model.ChainStatusActive)
		if err != nil {
			return err
		}
		if rec == nil {
			return goalerr.NotFoundf("chain_progress", chainID)
		}
		br, ok := def.BranchAfter(rec.CurrentStep)
		if !rec.AwaitingChoice || !ok {
			return goalerr.New(goalerr.InvalidState, goalerr.CodeNoPendingBranch, "chain %s has no pending choice", chainID).
				With("chain_id", chainID).
				With("step", rec.CurrentStep)
		}
		choice, ok := br.Match(strings.TrimSpace(label))
		if !ok {
			return goalerr.New(goalerr.InvalidChoice, "", "%q is not a valid choice", label).
				With("choice", label).
				With("valid", br.Labels())
		}

		for i := len(rec.CompletedSteps) - 1; i >= 0; i-- {
			if rec.CompletedSteps[i].Step == rec.CurrentStep {
				rec.CompletedSteps[i].Choice = choice.Label
				break
			}
		}
		o := &Outcome{ChainID: chainID, Advanced: true}
		next, err := svc.moveTo(ctx, db, def, rec, choice.NextStep)
		if err != nil {
			return err
		}
		if next != "" {
			if err := svc.advance(ctx, db, def, rec, next, o); err != nil {
				return err
			}
		}
		fill(o, rec)
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("chain branch chosen",
		zap.Int64("player_id", playerID), zap.String("chain_id", chainID), zap.String("choice", label))
	return out, nil
}

// ClaimReward grants a completed chain's rewards and unlocks exactly once.
func (svc *Service) ClaimReward(ctx context.Context, playerID int64, chainID string) (*ClaimResult, error) {
	var out *ClaimResult
	err := svc.runner.Do(ctx, playerID, func(ctx context.Context) error {
		def, err := svc.def(chainID)
		if err != nil {
			return err
		}
		db := uow.DB(ctx, svc.db)
		rec, err := latest(db, playerID, chainID)
		if err != nil {
			return err
		}
		if rec == nil {
			return goalerr.NotFoundf("chain_progress", chainID)
		}
		if rec.Status != model.ChainStatusCompleted {
			return goalerr.New(goalerr.InvalidState, goalerr.CodeNotCompleted, "chain %s not completed", chainID).
				With("chain_id", chainID).
				With("status", rec.Status)
		}
		if rec.Rewarded {
			return goalerr.New(goalerr.InvalidState, goalerr.CodeAlreadyRewarded, "chain %s already rewarded", chainID).
				With("chain_id", chainID)
		}

		now := svc.now()
		res := db.Model(&model.ChainProgress{}).
			Where("id = ? AND rewarded = ?", rec.ID, false).
			Updates(map[string]interface{}{"rewarded": true, "rewarded_at": now})
		if res.Error != nil {
			return goalerr.Storage("mark chain rewarded", res.Error)
		}
		if res.RowsAffected != 1 {
			return goalerr.New(goalerr.InvalidState, goalerr.CodeAlreadyRewarded, "chain %s already rewarded", chainID)
		}

		applied, err := svc.rewards.Apply(ctx, reward.Grant{
			PlayerID: playerID,
			Source:   "chain:" + chainID,
			Rewards:  def.Rewards.Rewards,
			Unlocks:  def.Rewards.Unlocks,
		})
		if err != nil {
			return goalerr.Reward(err)
		}
		out = &ClaimResult{
			ChainID: chainID,
			Attempt: rec.Attempt,
			Rewards: def.Rewards.Rewards,
			Unlocks: def.Rewards.Unlocks,
			Applied: applied,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("chain claimed", zap.Int64("player_id", playerID), zap.String("chain_id", chainID))
	return out, nil
}

func fill(out *Outcome, rec *model.ChainProgress) {
	out.Status = rec.Status
	out.Step = rec.CurrentStep
	out.Completed = rec.Status == model.ChainStatusCompleted
	out.QuestID = ""
	if rec.CurrentQuestID != nil && !rec.AwaitingChoice {
		out.QuestID = *rec.CurrentQuestID
	}
}
