package chain

import (
	"context"

	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/goalerr"
	"github.com/kasuganosora/textrpg/model"
	"gorm.io/gorm"
)

// checkPrerequisites returns the first unmet prerequisite of def, checking
// level, then skills, then prior chains, then prior quests.
func (svc *Service) checkPrerequisites(ctx context.Context, db *gorm.DB, p *model.Player, def *catalog.ChainDef) error {
	pre := def.Prerequisites
	if p.Level < pre.MinLevel {
		return goalerr.New(goalerr.PrerequisiteNotMet, goalerr.CodeLevel,
			"level %d required, player is %d", pre.MinLevel, p.Level).
			With("need", pre.MinLevel).
			With("have", p.Level).
			With("gap", pre.MinLevel-p.Level)
	}

	if len(pre.Skills) > 0 {
		var skills []model.PlayerSkill
		if err := db.Where("player_id = ?", p.ID).Find(&skills).Error; err != nil {
			return goalerr.Storage("load skills", err)
		}
		levels := make(map[string]int, len(skills))
		for _, s := range skills {
			levels[s.Skill] = s.Level
		}
		for _, req := range pre.Skills {
			if have := levels[req.Skill]; have < req.Level {
				return goalerr.New(goalerr.PrerequisiteNotMet, goalerr.CodeSkill,
					"%s %d required, player has %d", req.Skill, req.Level, have).
					With("skill", req.Skill).
					With("need", req.Level).
					With("have", have)
			}
		}
	}

	for _, ref := range pre.Chains {
		var n int64
		if err := db.Model(&model.ChainProgress{}).
			Where("player_id = ? AND chain_id = ? AND status = ?", p.ID, ref, model.ChainStatusCompleted).
			Count(&n).Error; err != nil {
			return goalerr.Storage("count completed chains", err)
		}
		if n == 0 {
			return goalerr.New(goalerr.PrerequisiteNotMet, goalerr.CodePriorChain,
				"chain %s must be completed first", ref).With("ref", ref)
		}
	}

	for _, ref := range pre.Quests {
		done, err := svc.quests.HasCompleted(ctx, p.ID, ref)
		if err != nil {
			return err
		}
		if !done {
			return goalerr.New(goalerr.PrerequisiteNotMet, goalerr.CodePriorQuest,
				"quest %s must be completed first", ref).With("ref", ref)
		}
	}
	return nil
}
