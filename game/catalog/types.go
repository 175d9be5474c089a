// Package catalog holds the immutable goal definitions: quests, achievements
// and quest chains. Definitions are loaded once and shared process-wide.
package catalog

import (
	"strings"
	"time"
)

// EventKind classifies a gameplay event.
type EventKind string

const (
	KindGather  EventKind = "gather"
	KindCombat  EventKind = "combat"
	KindCraft   EventKind = "craft"
	KindMarket  EventKind = "market"
	KindGuild   EventKind = "guild"
	KindExplore EventKind = "explore"
	KindLevel   EventKind = "level"
	KindSkillUp EventKind = "skillup"

	// KindQuest is raised by the engine itself when a quest completes; the
	// target is the quest id. Producers cannot emit it.
	KindQuest EventKind = "quest"
)

// External reports whether producers may emit events of this kind.
func (k EventKind) External() bool {
	switch k {
	case KindGather, KindCombat, KindCraft, KindMarket, KindGuild, KindExplore, KindLevel, KindSkillUp:
		return true
	}
	return false
}

func (k EventKind) valid() bool {
	return k.External() || k == KindQuest
}

// AnyTarget matches every target of the requirement's kind.
const AnyTarget = "any"

// Requirement is one condition of a goal.
type Requirement struct {
	Kind        EventKind `yaml:"kind" json:"kind"`
	Target      string    `yaml:"target" json:"target,omitempty"`
	Threshold   int       `yaml:"threshold" json:"threshold"`
	Description string    `yaml:"description" json:"description,omitempty"`
}

// Wildcard reports whether the requirement accepts any target.
func (r Requirement) Wildcard() bool {
	return r.Target == "" || r.Target == AnyTarget
}

// Matches reports whether an event of the given kind and target counts
// toward the requirement. An event without a target only feeds wildcard
// requirements.
func (r Requirement) Matches(kind EventKind, target string) bool {
	if r.Kind != kind {
		return false
	}
	return r.Wildcard() || r.Target == target
}

// RewardKind is what a reward grants.
type RewardKind string

const (
	RewardGold       RewardKind = "gold"
	RewardExperience RewardKind = "experience"
	RewardItem       RewardKind = "item"
	RewardTitle      RewardKind = "title"
)

// Reward is granted when a goal is claimed. ItemID names the item for item
// rewards and the title for title rewards.
type Reward struct {
	Kind        RewardKind `yaml:"kind" json:"kind"`
	Amount      int        `yaml:"amount" json:"amount,omitempty"`
	ItemID      string     `yaml:"item_id" json:"item_id,omitempty"`
	Description string     `yaml:"description" json:"description,omitempty"`
}

// QuestType is the cadence of a quest.
type QuestType string

const (
	QuestDaily  QuestType = "daily"
	QuestWeekly QuestType = "weekly"
	QuestStory  QuestType = "story"
	QuestEvent  QuestType = "event"
)

// QuestDef is a quest definition.
type QuestDef struct {
	ID             string        `yaml:"id" json:"id"`
	Title          string        `yaml:"title" json:"title"`
	Description    string        `yaml:"description" json:"description"`
	Type           QuestType     `yaml:"type" json:"type"`
	Level          int           `yaml:"level" json:"level"`
	TimeLimitHours int           `yaml:"time_limit_hours" json:"time_limit_hours,omitempty"`
	Requirements   []Requirement `yaml:"requirements" json:"requirements"`
	Rewards        []Reward      `yaml:"rewards" json:"rewards"`
	Active         bool          `yaml:"active" json:"active"`
	Added          time.Time     `yaml:"added" json:"added"`
}

// TimeLimit is the quest's own deadline after acceptance, zero when unbounded.
func (q *QuestDef) TimeLimit() time.Duration {
	return time.Duration(q.TimeLimitHours) * time.Hour
}

// Tier is one stage of a tiered achievement.
type Tier struct {
	Index     int    `yaml:"index" json:"index"`
	Threshold int    `yaml:"threshold" json:"threshold"`
	Reward    Reward `yaml:"reward" json:"reward"`
}

// AchievementDef is an achievement definition; it is tiered iff Tiers is
// non-empty, in which case the tier thresholds replace Requirement.Threshold.
type AchievementDef struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Category    string      `yaml:"category" json:"category"`
	Requirement Requirement `yaml:"requirement" json:"requirement"`
	Reward      Reward      `yaml:"reward" json:"reward"`
	Tiers       []Tier      `yaml:"tiers" json:"tiers,omitempty"`
	Active      bool        `yaml:"active" json:"active"`
}

// Tiered reports whether the achievement has tiers.
func (a *AchievementDef) Tiered() bool {
	return len(a.Tiers) > 0
}

// Goal is the progress value at which the achievement is fully completed.
func (a *AchievementDef) Goal() int {
	if a.Tiered() {
		return a.Tiers[len(a.Tiers)-1].Threshold
	}
	return a.Requirement.Threshold
}

// Step is one quest of a chain.
type Step struct {
	Number   int    `yaml:"number" json:"number"`
	QuestID  string `yaml:"quest_id" json:"quest_id"`
	Required bool   `yaml:"required" json:"required"`
}

// Choice is one option of a branch.
type Choice struct {
	Label    string `yaml:"label" json:"label"`
	NextStep int    `yaml:"next_step" json:"next_step"`
}

// Branch is a decision point offered after a step completes.
type Branch struct {
	AfterStep int      `yaml:"after_step" json:"after_step"`
	Choices   []Choice `yaml:"choices" json:"choices"`
}

// Match finds the choice whose label equals label, ignoring case.
func (b *Branch) Match(label string) (Choice, bool) {
	for _, c := range b.Choices {
		if strings.EqualFold(c.Label, label) {
			return c, true
		}
	}
	return Choice{}, false
}

// Labels returns the choice labels in definition order.
func (b *Branch) Labels() []string {
	out := make([]string, len(b.Choices))
	for i, c := range b.Choices {
		out[i] = c.Label
	}
	return out
}

// SkillReq is a minimum skill level.
type SkillReq struct {
	Skill string `yaml:"skill" json:"skill"`
	Level int    `yaml:"level" json:"level"`
}

// Prerequisites gate the start of a chain. All of them must hold.
type Prerequisites struct {
	MinLevel int        `yaml:"min_level" json:"min_level,omitempty"`
	Skills   []SkillReq `yaml:"skills" json:"skills,omitempty"`
	Chains   []string   `yaml:"chains" json:"chains,omitempty"`
	Quests   []string   `yaml:"quests" json:"quests,omitempty"`
}

// UnlockKind is what a chain completion unlocks.
type UnlockKind string

const (
	UnlockZone    UnlockKind = "zone"
	UnlockQuest   UnlockKind = "quest"
	UnlockFeature UnlockKind = "feature"
	UnlockTitle   UnlockKind = "title"
)

// Unlock is a permanent unlock granted by a chain.
type Unlock struct {
	Kind  UnlockKind `yaml:"kind" json:"kind"`
	Value string     `yaml:"value" json:"value"`
}

// ChainRewards is granted once when a completed chain is claimed.
type ChainRewards struct {
	Rewards []Reward `yaml:"rewards" json:"rewards,omitempty"`
	Unlocks []Unlock `yaml:"unlocks" json:"unlocks,omitempty"`
}

// ChainDef is a storyline of quests with optional branches.
type ChainDef struct {
	ID               string        `yaml:"id" json:"id"`
	Title            string        `yaml:"title" json:"title"`
	Description      string        `yaml:"description" json:"description"`
	Category         string        `yaml:"category" json:"category"`
	RecommendedLevel int           `yaml:"recommended_level" json:"recommended_level"`
	Repeatable       bool          `yaml:"repeatable" json:"repeatable"`
	Steps            []Step        `yaml:"steps" json:"steps"`
	Branches         []Branch      `yaml:"branches" json:"branches,omitempty"`
	Prerequisites    Prerequisites `yaml:"prerequisites" json:"prerequisites"`
	Rewards          ChainRewards  `yaml:"rewards" json:"rewards"`
	Active           bool          `yaml:"active" json:"active"`
}

// Step returns the step with the given number.
func (c *ChainDef) Step(number int) (*Step, bool) {
	for i := range c.Steps {
		if c.Steps[i].Number == number {
			return &c.Steps[i], true
		}
	}
	return nil, false
}

// BranchAfter returns the branch offered after the given step, if any.
func (c *ChainDef) BranchAfter(step int) (*Branch, bool) {
	for i := range c.Branches {
		if c.Branches[i].AfterStep == step {
			return &c.Branches[i], true
		}
	}
	return nil, false
}
