package progression

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/textrpg/game/achievement"
	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/kasuganosora/textrpg/game/chain"
	"github.com/kasuganosora/textrpg/game/goalerr"
	"github.com/kasuganosora/textrpg/game/notify"
	"github.com/kasuganosora/textrpg/game/quest"
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

type fixture struct {
	db      *gorm.DB
	runner  *uow.Runner
	rewards *reward.Service
	quests  *quest.Service
	chains  *chain.Service
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	store := testutil.Catalog(t)
	hooks := hook.NewHookCenter()
	runner := uow.NewRunner(db, c, 5*time.Second, logger)
	rewards := reward.NewService(db, hooks, logger)
	notifier := notify.NewService(db, ps, logger)
	quests := quest.NewService(db, store, runner, rewards, notifier, hooks, quest.Options{}, logger)
	chains := chain.NewService(db, store, runner, quests, rewards, notifier, hooks, logger)
	achievements := achievement.NewService(db, store, runner, rewards, notifier, hooks, c, logger)
	return &fixture{
		db:      db,
		runner:  runner,
		rewards: rewards,
		quests:  quests,
		chains:  chains,
		engine:  NewEngine(db, runner, quests, chains, achievements, hooks, logger),
	}
}

func unlockIDs(us []achievement.Unlock) []string {
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = u.AchievementID
	}
	return out
}

func TestEmit_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)

	_, err := f.engine.Emit(ctx, p.ID, catalog.KindQuest, "gather_ore", 1)
	assert.ErrorIs(t, err, goalerr.ErrInvalidInput, "quest events are internal")
	_, err = f.engine.Emit(ctx, p.ID, "dance", "", 1)
	assert.ErrorIs(t, err, goalerr.ErrInvalidInput)
	_, err = f.engine.Emit(ctx, p.ID, catalog.KindGather, "iron_ore", 0)
	assert.ErrorIs(t, err, goalerr.ErrInvalidInput)
	_, err = f.engine.Emit(ctx, 999, catalog.KindGather, "iron_ore", 1)
	assert.ErrorIs(t, err, goalerr.ErrNotFound)

	var n int64
	f.db.Model(&model.AchievementProgress{}).Count(&n)
	assert.Zero(t, n)
}

func TestEmit_ChainAndAchievements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)

	_, err := f.chains.Start(ctx, p.ID, "goblin_war")
	require.NoError(t, err)

	out, err := f.engine.Emit(ctx, p.ID, catalog.KindCombat, "goblin", 1)
	require.NoError(t, err)
	require.Len(t, out.Completed, 1)
	assert.Equal(t, "goblin_scout", out.Completed[0].QuestID)
	require.Len(t, out.Chains, 1)
	assert.Equal(t, "goblin_camp", out.Chains[0].QuestID)
	assert.Equal(t, []string{"first_blood"}, unlockIDs(out.Unlocks))

	out, err = f.engine.Emit(ctx, p.ID, catalog.KindCombat, "goblin", 1)
	require.NoError(t, err)
	assert.Empty(t, out.Unlocks)

	out, err = f.engine.Emit(ctx, p.ID, catalog.KindCombat, "goblin", 1)
	require.NoError(t, err)
	require.Len(t, out.Completed, 1)
	assert.Equal(t, "goblin_chief", out.Completed[0].QuestID)
	require.Len(t, out.Chains, 1)
	assert.True(t, out.Chains[0].Completed)
	assert.ElementsMatch(t, []string{"chief_slayer", "questor"}, unlockIDs(out.Unlocks))

	out, err = f.engine.Emit(ctx, p.ID, catalog.KindCombat, "goblin", 1)
	require.NoError(t, err)
	assert.Empty(t, out.Completed)
	assert.Empty(t, out.Chains)

	s := f.engine.Stats()
	assert.Equal(t, int64(4), s.Events)
	assert.Equal(t, int64(3), s.Completions)
	assert.Equal(t, int64(3), s.Unlocks)
}

func TestEmit_QuestAndTiers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)

	_, err := f.quests.Assign(ctx, p.ID, "gather_ore")
	require.NoError(t, err)

	out, err := f.engine.Emit(ctx, p.ID, catalog.KindGather, " iron_ore ", 35)
	require.NoError(t, err)
	require.Len(t, out.Completed, 1)
	require.Len(t, out.Unlocks, 2)
	assert.Equal(t, 1, out.Unlocks[0].Tier)
	assert.Equal(t, 2, out.Unlocks[1].Tier)
	assert.Equal(t, 35, out.Unlocks[1].Progress)

	rec, err := f.quests.Get(ctx, p.ID, "gather_ore")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Counters[0].Current, "quest counters saturate")
}

func TestEmit_Serialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var unlocks []achievement.Unlock
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.engine.Emit(ctx, p.ID, catalog.KindGather, "iron_ore", 1)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			unlocks = append(unlocks, out.Unlocks...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, unlocks, 1, "tier 1 unlocks exactly once")
	var rec model.AchievementProgress
	require.NoError(t, f.db.Where("player_id = ? AND achievement_id = ?", p.ID, "miner").First(&rec).Error)
	assert.Equal(t, 10, rec.Progress)
	assert.Equal(t, 1, rec.CurrentTier)
}

func TestLevelUpFeedsLevelEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)

	err := f.runner.Do(ctx, p.ID, func(ctx context.Context) error {
		_, err := f.rewards.Apply(ctx, reward.Grant{
			PlayerID: p.ID,
			Source:   "test",
			Rewards:  []catalog.Reward{{Kind: catalog.RewardExperience, Amount: 100}},
		})
		return err
	})
	require.NoError(t, err)

	s := f.engine.Stats()
	assert.Equal(t, int64(1), s.Events)
	assert.Zero(t, s.Failures)
}
