package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
quests:
  - id: gather_ore
    title: Ore Run
    type: daily
    level: 1
    requirements:
      - {kind: gather, target: iron_ore, threshold: 10}
    rewards:
      - {kind: gold, amount: 50}
  - id: goblin_1
    title: Goblin Scouts
    type: story
    requirements:
      - {kind: combat, target: goblin, threshold: 1}
    rewards:
      - {kind: experience, amount: 20}
  - id: goblin_2
    title: Goblin Camp
    type: story
    active: false
    requirements:
      - {kind: combat, target: goblin, threshold: 1}
    rewards:
      - {kind: item, item_id: goblin_ear}
achievements:
  - id: miner
    name: Miner
    requirement: {kind: gather, target: iron_ore}
    tiers:
      - {index: 1, threshold: 10, reward: {kind: gold, amount: 10}}
      - {index: 2, threshold: 30, reward: {kind: gold, amount: 30}}
      - {index: 3, threshold: 60, reward: {kind: title, item_id: master_miner}}
chains:
  - id: goblin_war
    title: Goblin War
    steps:
      - {number: 2, quest_id: goblin_2}
      - {number: 1, quest_id: goblin_1}
    branches:
      - after_step: 1
        choices:
          - {label: Help, next_step: 2}
    prerequisites:
      min_level: 2
      quests: [gather_ore]
    rewards:
      unlocks:
        - {kind: zone, value: goblin_caves}
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	q, ok := c.Quest("gather_ore")
	require.True(t, ok)
	assert.True(t, q.Active, "active defaults to true")
	assert.Equal(t, QuestDaily, q.Type)

	q2, _ := c.Quest("goblin_2")
	assert.False(t, q2.Active)

	a, ok := c.Achievement("miner")
	require.True(t, ok)
	assert.True(t, a.Tiered())
	assert.Equal(t, 60, a.Goal())

	ch, ok := c.Chain("goblin_war")
	require.True(t, ok)
	assert.Equal(t, 1, ch.Steps[0].Number, "steps are ordered by number")
	assert.True(t, ch.Steps[0].Required)
	_, ok = ch.BranchAfter(1)
	assert.True(t, ok)

	assert.Len(t, c.ChainsWithQuest("goblin_1"), 1)
	assert.Empty(t, c.ChainsWithQuest("gather_ore"))
	_, ok = c.Quest("nope")
	assert.False(t, ok)
}

func TestRequirementMatches(t *testing.T) {
	exact := Requirement{Kind: KindCombat, Target: "goblin", Threshold: 1}
	assert.True(t, exact.Matches(KindCombat, "goblin"))
	assert.False(t, exact.Matches(KindCombat, "orc"))
	assert.False(t, exact.Matches(KindGather, "goblin"))
	assert.False(t, exact.Matches(KindCombat, ""))

	for _, target := range []string{"", AnyTarget} {
		wild := Requirement{Kind: KindCombat, Target: target, Threshold: 1}
		assert.True(t, wild.Matches(KindCombat, "orc"))
		assert.True(t, wild.Matches(KindCombat, ""))
	}
}

func TestBranchMatch(t *testing.T) {
	b := Branch{AfterStep: 1, Choices: []Choice{{Label: "Help", NextStep: 2}, {Label: "Refuse", NextStep: 3}}}

	c, ok := b.Match("help")
	require.True(t, ok)
	assert.Equal(t, "Help", c.Label)
	assert.Equal(t, 2, c.NextStep)

	_, ok = b.Match("Ignore")
	assert.False(t, ok)
	assert.Equal(t, []string{"Help", "Refuse"}, b.Labels())
}

func TestEventKindExternal(t *testing.T) {
	assert.True(t, KindGather.External())
	assert.False(t, KindQuest.External())
	assert.False(t, EventKind("teleport").External())
}

func TestValidate_Rejects(t *testing.T) {
	quest := func(id string) QuestDef {
		return QuestDef{
			ID: id, Type: QuestStory,
			Requirements: []Requirement{{Kind: KindCombat, Threshold: 1}},
			Rewards:      []Reward{{Kind: RewardGold, Amount: 1}},
		}
	}
	tests := []struct {
		name   string
		quests []QuestDef
		achs   []AchievementDef
		chains []ChainDef
		want   string
	}{
		{name: "duplicate quest", quests: []QuestDef{quest("a"), quest("a")}, want: "duplicate id"},
		{name: "no requirements", quests: []QuestDef{{ID: "a", Type: QuestDaily, Rewards: []Reward{{Kind: RewardGold, Amount: 1}}}}, want: "no requirements"},
		{name: "zero threshold", quests: []QuestDef{{ID: "a", Type: QuestDaily, Requirements: []Requirement{{Kind: KindCraft}}, Rewards: []Reward{{Kind: RewardGold, Amount: 1}}}}, want: "threshold 0"},
		{name: "unknown kind", quests: []QuestDef{{ID: "a", Type: QuestDaily, Requirements: []Requirement{{Kind: "dance", Threshold: 1}}, Rewards: []Reward{{Kind: RewardGold, Amount: 1}}}}, want: "unknown event kind"},
		{
			name: "tiers not increasing",
			achs: []AchievementDef{{ID: "x", Requirement: Requirement{Kind: KindGather}, Tiers: []Tier{
				{Index: 1, Threshold: 10, Reward: Reward{Kind: RewardGold, Amount: 1}},
				{Index: 2, Threshold: 10, Reward: Reward{Kind: RewardGold, Amount: 1}},
			}}},
			want: "not above",
		},
		{name: "missing step 1", quests: []QuestDef{quest("a")}, chains: []ChainDef{{ID: "c", Steps: []Step{{Number: 2, QuestID: "a"}}}}, want: "missing step 1"},
		{
			name:   "daily step quest",
			quests: []QuestDef{{ID: "d", Type: QuestDaily, Requirements: []Requirement{{Kind: KindCombat, Threshold: 1}}, Rewards: []Reward{{Kind: RewardGold, Amount: 1}}}},
			chains: []ChainDef{{ID: "c", Steps: []Step{{Number: 1, QuestID: "d"}}}},
			want:   "must be story quests",
		},
		{
			name:   "time-limited step quest",
			quests: []QuestDef{{ID: "t", Type: QuestStory, TimeLimitHours: 2, Requirements: []Requirement{{Kind: KindCombat, Threshold: 1}}, Rewards: []Reward{{Kind: RewardGold, Amount: 1}}}},
			chains: []ChainDef{{ID: "c", Steps: []Step{{Number: 1, QuestID: "t"}}}},
			want:   "has a time limit",
		},
		{name: "unknown step quest", chains: []ChainDef{{ID: "c", Steps: []Step{{Number: 1, QuestID: "ghost"}}}}, want: "unknown quest"},
		{
			name:   "duplicate label",
			quests: []QuestDef{quest("a"), quest("b")},
			chains: []ChainDef{{ID: "c", Steps: []Step{{Number: 1, QuestID: "a"}, {Number: 2, QuestID: "b"}}, Branches: []Branch{{AfterStep: 1, Choices: []Choice{{Label: "Go", NextStep: 2}, {Label: "go", NextStep: 2}}}}}},
			want:   "repeats label",
		},
		{
			name:   "branch to missing step",
			quests: []QuestDef{quest("a")},
			chains: []ChainDef{{ID: "c", Steps: []Step{{Number: 1, QuestID: "a"}}, Branches: []Branch{{AfterStep: 1, Choices: []Choice{{Label: "Go", NextStep: 9}}}}}},
			want:   "unknown step 9",
		},
		{
			name:   "unknown prerequisite chain",
			quests: []QuestDef{quest("a")},
			chains: []ChainDef{{ID: "c", Steps: []Step{{Number: 1, QuestID: "a"}}, Prerequisites: Prerequisites{Chains: []string{"zzz"}}}},
			want:   "prerequisite chain",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.quests, tt.achs, tt.chains)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("quests: [: nope"))
	assert.Error(t, err)
}

func TestLoad_ShippedCatalog(t *testing.T) {
	c, err := Load("../../data/catalog.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Quests())
	assert.NotEmpty(t, c.Achievements())

	def, ok := c.Chain("crossroads")
	require.True(t, ok)
	b, ok := def.BranchAfter(1)
	require.True(t, ok)
	assert.Equal(t, []string{"Shelter", "Fight"}, b.Labels())
	assert.Len(t, c.ChainsWithQuest("goblin_camp"), 1)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("does/not/exist.yaml")
	assert.Error(t, err)
}
