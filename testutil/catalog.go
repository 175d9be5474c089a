package testutil

import (
	"testing"

	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/stretchr/testify/require"
)

// CatalogYAML is the catalog shared by the game package tests.
const CatalogYAML = `
quests:
  - id: gather_ore
    title: Ore Run
    type: daily
    level: 1
    added: 2026-01-01T00:00:00Z
    requirements:
      - {kind: gather, target: iron_ore, threshold: 10}
    rewards:
      - {kind: gold, amount: 50}
  - id: chop_wood
    title: Firewood
    type: daily
    level: 1
    added: 2026-02-01T00:00:00Z
    requirements:
      - {kind: gather, target: wood, threshold: 5}
    rewards:
      - {kind: gold, amount: 20}
  - id: craft_daily
    title: Apprentice Work
    type: daily
    level: 1
    added: 2026-01-15T00:00:00Z
    requirements:
      - {kind: craft, threshold: 2}
    rewards:
      - {kind: gold, amount: 10}
  - id: hunt_wolves
    title: Wolf Cull
    type: daily
    level: 5
    requirements:
      - {kind: combat, target: wolf, threshold: 3}
    rewards:
      - {kind: experience, amount: 50}
  - id: old_daily
    title: Retired
    type: daily
    level: 1
    active: false
    requirements:
      - {kind: gather, threshold: 1}
    rewards:
      - {kind: gold, amount: 1}
  - id: market_weekly
    title: Trader
    type: weekly
    level: 1
    requirements:
      - {kind: market, target: any, threshold: 5}
    rewards:
      - {kind: gold, amount: 200}
  - id: festival
    title: Lantern Festival
    type: event
    time_limit_hours: 48
    requirements:
      - {kind: explore, threshold: 1}
    rewards:
      - {kind: item, item_id: festival_token, amount: 1}
  - id: goblin_scout
    title: Goblin Scouts
    type: story
    requirements:
      - {kind: combat, target: goblin, threshold: 1}
    rewards:
      - {kind: experience, amount: 20}
  - id: goblin_camp
    title: Goblin Camp
    type: story
    requirements:
      - {kind: combat, target: goblin, threshold: 1}
    rewards:
      - {kind: experience, amount: 20}
  - id: goblin_chief
    title: The Goblin Chief
    type: story
    requirements:
      - {kind: combat, target: goblin, threshold: 1}
    rewards:
      - {kind: experience, amount: 20}
  - id: village_call
    title: A Call for Help
    type: story
    requirements:
      - {kind: explore, target: village, threshold: 1}
    rewards:
      - {kind: gold, amount: 5}
  - id: help_village
    title: Rebuild the Village
    type: story
    requirements:
      - {kind: craft, target: plank, threshold: 2}
    rewards:
      - {kind: gold, amount: 5}
  - id: raid_camp
    title: Raid the Camp
    type: story
    requirements:
      - {kind: combat, target: bandit, threshold: 2}
    rewards:
      - {kind: gold, amount: 5}
  - id: veteran_trial
    title: Veteran's Trial
    type: story
    requirements:
      - {kind: combat, target: champion, threshold: 1}
    rewards:
      - {kind: gold, amount: 5}
  - id: patrol_route
    title: Patrol
    type: story
    requirements:
      - {kind: explore, target: road, threshold: 1}
    rewards:
      - {kind: gold, amount: 5}
achievements:
  - id: miner
    name: Miner
    description: Mine iron ore.
    category: gathering
    requirement: {kind: gather, target: iron_ore}
    tiers:
      - {index: 1, threshold: 10, reward: {kind: gold, amount: 10}}
      - {index: 2, threshold: 30, reward: {kind: gold, amount: 30}}
      - {index: 3, threshold: 60, reward: {kind: title, item_id: master_miner}}
  - id: first_blood
    name: First Blood
    category: combat
    requirement: {kind: combat, threshold: 1}
    reward: {kind: gold, amount: 5}
  - id: questor
    name: Questor
    category: quests
    requirement: {kind: quest, threshold: 3}
    reward: {kind: title, item_id: questor}
  - id: chief_slayer
    name: Chief Slayer
    category: quests
    requirement: {kind: quest, target: goblin_chief, threshold: 1}
    reward: {kind: gold, amount: 100}
chains:
  - id: goblin_war
    title: Goblin War
    category: main
    recommended_level: 1
    steps:
      - {number: 1, quest_id: goblin_scout}
      - {number: 2, quest_id: goblin_camp}
      - {number: 3, quest_id: goblin_chief}
    rewards:
      rewards:
        - {kind: gold, amount: 100}
      unlocks:
        - {kind: zone, value: goblin_caves}
  - id: crossroads
    title: Crossroads
    category: side
    steps:
      - {number: 1, quest_id: village_call}
      - {number: 2, quest_id: help_village}
      - {number: 4, quest_id: raid_camp}
    branches:
      - after_step: 1
        choices:
          - {label: Help, next_step: 2}
          - {label: Raid, next_step: 4}
    rewards:
      rewards:
        - {kind: experience, amount: 100}
  - id: veteran
    title: Veteran
    category: main
    recommended_level: 10
    steps:
      - {number: 1, quest_id: veteran_trial}
    prerequisites:
      min_level: 10
      skills:
        - {skill: mining, level: 5}
      chains: [goblin_war]
      quests: [gather_ore]
    rewards:
      unlocks:
        - {kind: feature, value: veteran_shop}
  - id: patrol
    title: Road Patrol
    category: repeatable
    repeatable: true
    steps:
      - {number: 1, quest_id: patrol_route}
    rewards:
      rewards:
        - {kind: gold, amount: 10}
`

// Catalog parses CatalogYAML.
func Catalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(CatalogYAML))
	require.NoError(t, err, "Catalog: Parse")
	return c
}
