package achievement

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/kasuganosora/textrpg/cache"
	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/goalerr"
	"github.com/kasuganosora/textrpg/game/notify"
	"github.com/kasuganosora/textrpg/game/progress"
	"github.com/kasuganosora/textrpg/game/reward"
	"github.com/kasuganosora/textrpg/game/uow"
	"github.com/kasuganosora/textrpg/model"
	"github.com/kasuganosora/textrpg/plugin/hook"
	"github.com/kasuganosora/textrpg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*Service, *gorm.DB, cache.Cache, *hook.HookCenter) {
	return newServiceWith(t, nil)
}

func newServiceWith(t *testing.T, applier reward.Applier) (*Service, *gorm.DB, cache.Cache, *hook.HookCenter) {
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	hooks := hook.NewHookCenter()
	logger := zap.NewNop()
	if applier == nil {
		applier = reward.NewService(db, hooks, logger)
	}
	svc := NewService(db, testutil.Catalog(t), uow.NewRunner(db, c, time.Second, logger),
		applier, notify.NewService(db, ps, logger), hooks, c, logger)
	return svc, db, c, hooks
}

func ore(qty int) progress.Event {
	return progress.Event{Kind: catalog.KindGather, Target: "iron_ore", Quantity: qty}
}

func TestUpdateProgress_TierMonotonicity(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	p := int64(1)

	steps := []struct {
		qty       int
		wantTiers []int
		progress  int
	}{
		{5, nil, 5},
		{10, []int{1}, 15},
		{20, []int{2}, 35},
		{100, []int{3}, 60},
		{100, nil, 60},
	}
	for _, s := range steps {
		unlocks, err := svc.UpdateProgress(ctx, p, ore(s.qty))
		require.NoError(t, err)
		var got []int
		for _, u := range unlocks {
			if u.AchievementID == "miner" {
				got = append(got, u.Tier)
			}
		}
		assert.Equal(t, s.wantTiers, got, "after +%d", s.qty)

		views, err := svc.ListProgress(ctx, p)
		require.NoError(t, err)
		for _, v := range views {
			if v.AchievementID == "miner" {
				assert.Equal(t, s.progress, v.Progress)
				assert.LessOrEqual(t, v.Progress, 60)
			}
		}
	}
}

func TestUpdateProgress_CrossesSeveralTiers(t *testing.T) {
	svc, db, _, _ := newService(t)
	unlocks, err := svc.UpdateProgress(context.Background(), 1, ore(40))
	require.NoError(t, err)
	require.Len(t, unlocks, 2)
	assert.Equal(t, 1, unlocks[0].Tier)
	assert.Equal(t, 2, unlocks[1].Tier)
	assert.False(t, unlocks[1].Completed)

	var rec model.AchievementProgress
	require.NoError(t, db.Where("player_id = ? AND achievement_id = ?", 1, "miner").First(&rec).Error)
	assert.Equal(t, 2, rec.CurrentTier)
	assert.False(t, rec.Completed)
}

func TestUpdateProgress_NoMatchCreatesNothing(t *testing.T) {
	svc, db, _, _ := newService(t)
	unlocks, err := svc.UpdateProgress(context.Background(), 1, progress.Event{Kind: catalog.KindGather, Target: "wood", Quantity: 5})
	require.NoError(t, err)
	assert.Empty(t, unlocks)

	var n int64
	db.Model(&model.AchievementProgress{}).Count(&n)
	assert.Zero(t, n)
}

func TestClaim_Tiered(t *testing.T) {
	svc, db, _, _ := newService(t)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, db, "miner", 1)

	_, err := svc.Claim(ctx, p.ID, "miner")
	assert.ErrorIs(t, err, goalerr.ErrNotFound)

	_, err = svc.UpdateProgress(ctx, p.ID, ore(5))
	require.NoError(t, err)
	_, err = svc.Claim(ctx, p.ID, "miner")
	assert.ErrorIs(t, err, goalerr.ErrNotCompleted)

	_, err = svc.UpdateProgress(ctx, p.ID, ore(30))
	require.NoError(t, err)
	res, err := svc.Claim(ctx, p.ID, "miner")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Tiers)
	assert.Equal(t, int64(40), res.Applied.Gold)

	_, err = svc.Claim(ctx, p.ID, "miner")
	assert.ErrorIs(t, err, goalerr.ErrNotCompleted, "nothing new to claim yet")

	claimable, err := svc.ListClaimable(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, claimable)

	_, err = svc.UpdateProgress(ctx, p.ID, ore(25))
	require.NoError(t, err)
	res, err = svc.Claim(ctx, p.ID, "miner")
	require.NoError(t, err)
	assert.Equal(t, []int{3}, res.Tiers)

	_, err = svc.Claim(ctx, p.ID, "miner")
	assert.ErrorIs(t, err, goalerr.ErrAlreadyRewarded)

	var unlock model.PlayerUnlock
	require.NoError(t, db.Where("player_id = ? AND kind = ?", p.ID, "title").First(&unlock).Error)
	assert.Equal(t, "master_miner", unlock.Value)
}

type failingApplier struct{}

func (failingApplier) Apply(context.Context, reward.Grant) (*reward.Result, error) {
	return nil, errors.New("inventory full")
}

func TestClaim_RewardFailureRollsBack(t *testing.T) {
	svc, db, _, _ := newServiceWith(t, failingApplier{})
	ctx := context.Background()
	p := testutil.CreatePlayer(t, db, "miner", 1)

	_, err := svc.UpdateProgress(ctx, p.ID, ore(15))
	require.NoError(t, err)

	_, err = svc.Claim(ctx, p.ID, "miner")
	require.ErrorIs(t, err, goalerr.ErrRewardApplication)
	assert.Equal(t, goalerr.RewardApplicationFailure, goalerr.KindOf(err))
	assert.False(t, goalerr.Retryable(err))

	var rec model.AchievementProgress
	require.NoError(t, db.Where("player_id = ? AND achievement_id = ?", p.ID, "miner").First(&rec).Error)
	assert.Equal(t, 1, rec.CurrentTier)
	assert.Zero(t, rec.ClaimedTier, "claimed tier rolled back")
	assert.False(t, rec.Claimed)
	assert.Nil(t, rec.ClaimedAt)

	claimable, err := svc.ListClaimable(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, claimable, 1)
}

func TestClaim_Flat(t *testing.T) {
	svc, db, _, hooks := newService(t)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, db, "fighter", 1)

	var unlocked []hook.AchievementEvent
	hooks.Register(hook.OnAchievementUnlock, 0, "test", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		unlocked = append(unlocked, d.(hook.AchievementEvent))
		return d, nil
	})

	unlocks, err := svc.UpdateProgress(ctx, p.ID, progress.Event{Kind: catalog.KindCombat, Target: "rat", Quantity: 1})
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, "first_blood", unlocks[0].AchievementID)
	assert.True(t, unlocks[0].Completed)
	require.Len(t, unlocked, 1)

	claimable, err := svc.ListClaimable(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, claimable, 1)

	res, err := svc.Claim(ctx, p.ID, "first_blood")
	require.NoError(t, err)
	assert.Empty(t, res.Tiers)
	assert.Equal(t, int64(5), res.Applied.Gold)

	_, err = svc.Claim(ctx, p.ID, "first_blood")
	assert.ErrorIs(t, err, goalerr.ErrAlreadyRewarded)

	// Completed achievements ignore further events.
	unlocks, err = svc.UpdateProgress(ctx, p.ID, progress.Event{Kind: catalog.KindCombat, Target: "rat", Quantity: 1})
	require.NoError(t, err)
	assert.Empty(t, unlocks)
}

func TestUpdateProgress_QuestKind(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	for _, q := range []string{"goblin_scout", "goblin_camp"} {
		unlocks, err := svc.UpdateProgress(ctx, 1, progress.Event{Kind: catalog.KindQuest, Target: q, Quantity: 1})
		require.NoError(t, err)
		assert.Empty(t, unlocks)
	}
	unlocks, err := svc.UpdateProgress(ctx, 1, progress.Event{Kind: catalog.KindQuest, Target: "goblin_chief", Quantity: 1})
	require.NoError(t, err)
	var ids []string
	for _, u := range unlocks {
		ids = append(ids, u.AchievementID)
	}
	assert.ElementsMatch(t, []string{"questor", "chief_slayer"}, ids)
}

func TestRanking(t *testing.T) {
	svc, db, c, _ := newService(t)
	ctx := context.Background()
	a := testutil.CreatePlayer(t, db, "alice", 1)
	b := testutil.CreatePlayer(t, db, "bob", 1)

	_, err := svc.UpdateProgress(ctx, a.ID, ore(60))
	require.NoError(t, err)
	_, err = svc.UpdateProgress(ctx, b.ID, ore(10))
	require.NoError(t, err)

	top, err := svc.Ranking(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, RankEntry{Rank: 1, PlayerID: a.ID, Name: "alice", Points: 3}, top[0])
	assert.Equal(t, RankEntry{Rank: 2, PlayerID: b.ID, Name: "bob", Points: 1}, top[1])

	me, err := svc.Rank(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, RankEntry{Rank: 2, PlayerID: b.ID, Name: "bob", Points: 1}, *me)

	c3 := testutil.CreatePlayer(t, db, "carol", 1)
	_, err = svc.Rank(ctx, c3.ID)
	assert.ErrorIs(t, err, goalerr.ErrNotFound, "players without tiers are unranked")

	// Rebuilding from the database converges on the same scores.
	require.NoError(t, c.ZAdd(ctx, RankingKey, 0, strconv.FormatInt(a.ID, 10)))
	n, err := svc.RebuildRanking(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	score, err := c.ZScore(ctx, RankingKey, strconv.FormatInt(a.ID, 10))
	require.NoError(t, err)
	assert.Equal(t, float64(3), score)
}
