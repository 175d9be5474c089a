package achievement

import (
	"time"

	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/progress"
	"github.com/kasuganosora/textrpg/model"
)

// achievementGoal adapts an achievement record to the progress tracker. Its
// one counter is the cumulative progress toward the final threshold; tiers
// are read off that value afterwards.
type achievementGoal struct {
	rec     *model.AchievementProgress
	def     *catalog.AchievementDef
	oldTier int
}

func newGoal(def *catalog.AchievementDef, rec *model.AchievementProgress) *achievementGoal {
	return &achievementGoal{rec: rec, def: def, oldTier: rec.CurrentTier}
}

func (g *achievementGoal) Requirements() []catalog.Requirement {
	r := g.def.Requirement
	r.Threshold = g.def.Goal()
	return []catalog.Requirement{r}
}

func (g *achievementGoal) Counters() []progress.Counter {
	return []progress.Counter{{Current: g.rec.Progress, Completed: g.rec.Progress >= g.def.Goal()}}
}

func (g *achievementGoal) SetCounters(c []progress.Counter) {
	if len(c) > 0 {
		g.rec.Progress = c[0].Current
	}
}

func (g *achievementGoal) IsCompleted() bool { return g.rec.Completed }

func (g *achievementGoal) MarkCompleted(at time.Time) {
	g.rec.Completed = true
	g.rec.CompletedAt = &at
}
