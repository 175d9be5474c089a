package chain

import (
	"context"

	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/goalerr"
	"github.com/kasuganosora/textrpg/game/uow"
	"github.com/kasuganosora/textrpg/model"
)

// View is a chain as shown to the player: either an attempt in progress or
// waiting to be claimed, or a chain that can be started.
type View struct {
	ChainID          string                `json:"chain_id"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Category         string                `json:"category"`
	RecommendedLevel int                   `json:"recommended_level"`
	Repeatable       bool                  `json:"repeatable"`
	Status           string                `json:"status,omitempty"`
	Attempt          int                   `json:"attempt,omitempty"`
	CurrentStep      int                   `json:"current_step,omitempty"`
	CurrentQuestID   string                `json:"current_quest_id,omitempty"`
	AwaitingChoice   bool                  `json:"awaiting_choice"`
	Choices          []string              `json:"choices,omitempty"`
	Decisions        map[int]string        `json:"decisions,omitempty"`
	CompletedSteps   []model.CompletedStep `json:"completed_steps,omitempty"`
	Claimable        bool                  `json:"claimable"`
	Startable        bool                  `json:"startable"`
}

func newView(def *catalog.ChainDef, rec *model.ChainProgress) View {
	v := View{
		ChainID:          def.ID,
		Title:            def.Title,
		Description:      def.Description,
		Category:         def.Category,
		RecommendedLevel: def.RecommendedLevel,
		Repeatable:       def.Repeatable,
	}
	if rec == nil {
		return v
	}
	v.Status = rec.Status
	v.Attempt = rec.Attempt
	v.CurrentStep = rec.CurrentStep
	v.AwaitingChoice = rec.AwaitingChoice
	v.CompletedSteps = rec.CompletedSteps
	v.Claimable = rec.Status == model.ChainStatusCompleted && !rec.Rewarded
	if rec.CurrentQuestID != nil {
		v.CurrentQuestID = *rec.CurrentQuestID
	}
	if rec.AwaitingChoice {
		if br, ok := def.BranchAfter(rec.CurrentStep); ok {
			v.Choices = br.Labels()
		}
	}
	for _, br := range def.Branches {
		if choice, ok := rec.ChoiceAt(br.AfterStep); ok {
			if v.Decisions == nil {
				v.Decisions = make(map[int]string)
			}
			v.Decisions[br.AfterStep] = choice
		}
	}
	return v
}

// Get returns the player's latest attempt at the chain.
func (svc *Service) Get(ctx context.Context, playerID int64, chainID string) (*View, error) {
	def, err := svc.def(chainID)
	if err != nil {
		return nil, err
	}
	rec, err := latest(uow.DB(ctx, svc.db), playerID, chainID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, goalerr.NotFoundf("chain_progress", chainID)
	}
	v := newView(def, rec)
	return &v, nil
}

// ListAvailable returns the player's attempts in progress or awaiting a
// claim, followed by the chains the player may start now.
func (svc *Service) ListAvailable(ctx context.Context, playerID int64) ([]View, error) {
	db := uow.DB(ctx, svc.db)
	p, err := loadPlayer(db, playerID)
	if err != nil {
		return nil, err
	}
	var recs []model.ChainProgress
	if err := db.Where("player_id = ?", playerID).Order("attempt ASC").Find(&recs).Error; err != nil {
		return nil, goalerr.Storage("list chain progress", err)
	}
	newest := make(map[string]*model.ChainProgress, len(recs))
	for i := range recs {
		newest[recs[i].ChainID] = &recs[i]
	}

	var held, open []View
	for _, def := range svc.catalog.Chains() {
		rec := newest[def.ID]
		if rec != nil {
			v := newView(def, rec)
			if rec.Status == model.ChainStatusActive || rec.Status == model.ChainStatusOnHold || v.Claimable {
				held = append(held, v)
				continue
			}
			if rec.Status == model.ChainStatusCompleted && !def.Repeatable {
				continue
			}
		}
		if !def.Active {
			continue
		}
		if err := svc.checkPrerequisites(ctx, db, p, def); err != nil {
			if goalerr.KindOf(err) == goalerr.PrerequisiteNotMet {
				continue
			}
			return nil, err
		}
		v := newView(def, nil)
		v.Startable = true
		open = append(open, v)
	}
	return append(held, open...), nil
}
