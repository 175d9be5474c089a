package model_test

import (
	"testing"
	"time"

	"github.com/kasuganosora/textrpg/model"
	"github.com/kasuganosora/textrpg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// Player
	p := &model.Player{Name: "Hero", Level: 3}
	require.NoError(t, db.Create(p).Error)
	assert.Greater(t, p.ID, int64(0))

	var found model.Player
	require.NoError(t, db.First(&found, p.ID).Error)
	assert.Equal(t, "Hero", found.Name)

	require.NoError(t, db.Create(&model.PlayerSkill{PlayerID: p.ID, Skill: "mining", Level: 5}).Error)
	require.NoError(t, db.Create(&model.InventoryItem{PlayerID: p.ID, ItemID: "iron_ore", Qty: 3}).Error)
	require.NoError(t, db.Create(&model.PlayerUnlock{PlayerID: p.ID, Kind: "zone", Value: "mines"}).Error)

	// Quest progress round-trips its counters.
	exp := time.Now().Add(time.Hour)
	qp := &model.QuestProgress{
		PlayerID:  p.ID,
		QuestID:   "gather_ore",
		QuestType: "daily",
		Counters:  []model.RequirementProgress{{Index: 0, Current: 2}},
		StartedAt: time.Now(),
		ExpiresAt: &exp,
	}
	require.NoError(t, db.Create(qp).Error)
	var gotQP model.QuestProgress
	require.NoError(t, db.First(&gotQP, qp.ID).Error)
	require.Len(t, gotQP.Counters, 1)
	assert.Equal(t, 2, gotQP.Counters[0].Current)

	// Duplicate (player, quest) is rejected.
	dup := &model.QuestProgress{PlayerID: p.ID, QuestID: "gather_ore", QuestType: "daily", StartedAt: time.Now()}
	assert.Error(t, db.Create(dup).Error)

	// Chain progress
	qid := "goblin_1"
	cp := &model.ChainProgress{
		PlayerID:       p.ID,
		ChainID:        "goblin_war",
		Attempt:        1,
		CurrentStep:    1,
		CurrentQuestID: &qid,
		Status:         model.ChainStatusActive,
		CompletedSteps: []model.CompletedStep{{Step: 1, QuestID: "goblin_1", Choice: "Help"}},
		StartedAt:      time.Now(),
	}
	require.NoError(t, db.Create(cp).Error)
	var gotCP model.ChainProgress
	require.NoError(t, db.First(&gotCP, cp.ID).Error)
	choice, ok := gotCP.ChoiceAt(1)
	assert.True(t, ok)
	assert.Equal(t, "Help", choice)

	require.NoError(t, db.Create(&model.AchievementProgress{PlayerID: p.ID, AchievementID: "miner"}).Error)
	require.NoError(t, db.Create(&model.Notification{PlayerID: p.ID, Category: "quest", Kind: "quest_completed"}).Error)

	// AuditLog
	al := &model.AuditLog{
		TraceID: "trace-001", Action: "quest.claim",
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(al).Error)
}

func TestQuestProgress_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	q := &model.QuestProgress{ExpiresAt: &past}
	assert.True(t, q.Expired(now))

	q.Completed = true
	assert.False(t, q.Expired(now), "completed quests never expire")

	story := &model.QuestProgress{}
	assert.False(t, story.Expired(now))
}
