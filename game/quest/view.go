package quest

import (
	"time"

	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/progress"
	"github.com/kasuganosora/textrpg/model"
)

// questGoal adapts a quest record to the progress tracker.
type questGoal struct {
	rec *model.QuestProgress
	def *catalog.QuestDef
}

func (g *questGoal) Requirements() []catalog.Requirement { return g.def.Requirements }
func (g *questGoal) Counters() []progress.Counter       { return fromModel(g.rec.Counters) }
func (g *questGoal) SetCounters(c []progress.Counter)   { g.rec.Counters = toModel(c) }
func (g *questGoal) IsCompleted() bool                  { return g.rec.Completed }

func (g *questGoal) MarkCompleted(at time.Time) {
	g.rec.Completed = true
	g.rec.CompletedAt = &at
}

func toModel(cs []progress.Counter) []model.RequirementProgress {
	out := make([]model.RequirementProgress, len(cs))
	for i, c := range cs {
		out[i] = model.RequirementProgress{Index: c.Index, Current: c.Current, Completed: c.Completed}
	}
	return out
}

func fromModel(rs []model.RequirementProgress) []progress.Counter {
	out := make([]progress.Counter, len(rs))
	for i, r := range rs {
		out[i] = progress.Counter{Index: r.Index, Current: r.Current, Completed: r.Completed}
	}
	return out
}

// RequirementView is one requirement with the player's progress on it.
type RequirementView struct {
	Kind        catalog.EventKind `json:"kind"`
	Target      string            `json:"target,omitempty"`
	Description string            `json:"description,omitempty"`
	Current     int               `json:"current"`
	Threshold   int               `json:"threshold"`
	Completed   bool              `json:"completed"`
}

// View is a quest record as presented to the player.
type View struct {
	QuestID      string            `json:"quest_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Type         catalog.QuestType `json:"type"`
	Level        int               `json:"level"`
	Requirements []RequirementView `json:"requirements"`
	Rewards      []catalog.Reward  `json:"rewards"`
	Completed    bool              `json:"completed"`
	Claimable    bool              `json:"claimable"`
	Expired      bool              `json:"expired"`
	StartedAt    time.Time         `json:"started_at"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

func newView(rec *model.QuestProgress, def *catalog.QuestDef, now time.Time) View {
	counters := fromModel(rec.Counters)
	reqs := make([]RequirementView, len(def.Requirements))
	for i, r := range def.Requirements {
		rv := RequirementView{Kind: r.Kind, Target: r.Target, Description: r.Description, Threshold: r.Threshold}
		if i < len(counters) {
			rv.Current = counters[i].Current
			rv.Completed = counters[i].Completed
		}
		reqs[i] = rv
	}
	return View{
		QuestID:      def.ID,
		Title:        def.Title,
		Description:  def.Description,
		Type:         def.Type,
		Level:        def.Level,
		Requirements: reqs,
		Rewards:      def.Rewards,
		Completed:    rec.Completed,
		Claimable:    rec.Completed && !rec.Rewarded,
		Expired:      rec.Expired(now),
		StartedAt:    rec.StartedAt,
		ExpiresAt:    rec.ExpiresAt,
		CompletedAt:  rec.CompletedAt,
	}
}
