package quest

import (
	"context"
	"errors"
	"testing"
	"time"

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

func nopLogger() *zap.Logger { return zap.NewNop() }

// Wednesday afternoon, UTC.
var wednesday = time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	svc   *Service
	hooks *hook.HookCenter
	clock time.Time
}

func newFixture(t *testing.T, rewards reward.Applier) *fixture {
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	hooks := hook.NewHookCenter()
	if rewards == nil {
		rewards = reward.NewService(db, hooks, nopLogger())
	}
	f := &fixture{db: db, hooks: hooks, clock: wednesday}
	f.svc = NewService(db, testutil.Catalog(t), uow.NewRunner(db, c, time.Second, nopLogger()), rewards,
		notify.NewService(db, ps, nopLogger()), hooks,
		Options{DailyCount: 3, WeeklyCount: 1}, nopLogger())
	f.svc.SetClock(func() time.Time { return f.clock })
	return f
}

func gather(target string, qty int) progress.Event {
	return progress.Event{Kind: catalog.KindGather, Target: target, Quantity: qty}
}

func TestAssign(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)

	rec, err := f.svc.Assign(ctx, p.ID, "gather_ore")
	require.NoError(t, err)
	assert.Equal(t, "daily", rec.QuestType)
	require.Len(t, rec.Counters, 1)
	assert.Zero(t, rec.Counters[0].Current)
	require.NotNil(t, rec.ExpiresAt)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), *rec.ExpiresAt)

	_, err = f.svc.Assign(ctx, p.ID, "gather_ore")
	assert.ErrorIs(t, err, goalerr.ErrDuplicateActive)

	_, err = f.svc.Assign(ctx, p.ID, "no_such_quest")
	assert.ErrorIs(t, err, goalerr.ErrNotFound)

	_, err = f.svc.Assign(ctx, p.ID, "old_daily")
	assert.ErrorIs(t, err, &goalerr.Error{Kind: goalerr.InvalidState})

	_, err = f.svc.Assign(ctx, 999, "gather_ore")
	assert.ErrorIs(t, err, goalerr.ErrNotFound)
}

func TestAssign_StoryNeverExpires(t *testing.T) {
	f := newFixture(t, nil)
	p := testutil.CreatePlayer(t, f.db, "hero", 1)

	rec, err := f.svc.Assign(context.Background(), p.ID, "goblin_scout")
	require.NoError(t, err)
	assert.Nil(t, rec.ExpiresAt)

	ev, err := f.svc.Assign(context.Background(), p.ID, "festival")
	require.NoError(t, err)
	require.NotNil(t, ev.ExpiresAt)
	assert.Equal(t, wednesday.Add(48*time.Hour), *ev.ExpiresAt)
}

func TestRecordEvent_SaturatesAndCompletesOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)
	_, err := f.svc.Assign(ctx, p.ID, "gather_ore")
	require.NoError(t, err)

	var hooked int
	f.hooks.Register(hook.OnQuestComplete, 0, "test", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		hooked++
		assert.Equal(t, "gather_ore", d.(hook.QuestEvent).QuestID)
		return d, nil
	})

	done, err := f.svc.RecordEvent(ctx, p.ID, gather("iron_ore", 7))
	require.NoError(t, err)
	assert.Empty(t, done)

	done, err = f.svc.RecordEvent(ctx, p.ID, gather("iron_ore", 7))
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "gather_ore", done[0].QuestID)

	done, err = f.svc.RecordEvent(ctx, p.ID, gather("iron_ore", 7))
	require.NoError(t, err)
	assert.Empty(t, done, "completion is signalled once")
	assert.Equal(t, 1, hooked)

	rec, err := f.svc.Get(ctx, p.ID, "gather_ore")
	require.NoError(t, err)
	assert.True(t, rec.Completed)
	assert.Equal(t, 10, rec.Counters[0].Current, "never above threshold")

	ok, err := f.svc.HasCompleted(ctx, p.ID, "gather_ore")
	require.NoError(t, err)
	assert.True(t, ok)

	var notes []model.Notification
	require.NoError(t, f.db.Where("player_id = ?", p.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, notify.KindQuestCompleted, notes[0].Kind)
}

func TestRecordEvent_IgnoresOtherTargetsAndExpired(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)
	_, err := f.svc.Assign(ctx, p.ID, "gather_ore")
	require.NoError(t, err)

	_, err = f.svc.RecordEvent(ctx, p.ID, gather("copper_ore", 5))
	require.NoError(t, err)
	_, err = f.svc.RecordEvent(ctx, p.ID, gather("", 5))
	require.NoError(t, err)
	rec, _ := f.svc.Get(ctx, p.ID, "gather_ore")
	assert.Zero(t, rec.Counters[0].Current)

	f.clock = wednesday.Add(12 * time.Hour) // past midnight
	_, err = f.svc.RecordEvent(ctx, p.ID, gather("iron_ore", 10))
	require.NoError(t, err)
	rec, _ = f.svc.Get(ctx, p.ID, "gather_ore")
	assert.False(t, rec.Completed, "expired quests accept no progress")

	views, err := f.svc.ListActive(ctx, p.ID, "")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Expired)
	assert.False(t, views[0].Claimable)

	_, err = f.svc.Claim(ctx, p.ID, "gather_ore")
	assert.ErrorIs(t, err, goalerr.ErrExpired)
	assert.NotErrorIs(t, err, goalerr.ErrNotCompleted)
}

func TestClaim(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)

	_, err := f.svc.Claim(ctx, p.ID, "gather_ore")
	assert.ErrorIs(t, err, goalerr.ErrNotFound)

	_, err = f.svc.Assign(ctx, p.ID, "gather_ore")
	require.NoError(t, err)
	_, err = f.svc.Claim(ctx, p.ID, "gather_ore")
	assert.ErrorIs(t, err, goalerr.ErrNotCompleted)

	_, err = f.svc.RecordEvent(ctx, p.ID, gather("iron_ore", 10))
	require.NoError(t, err)

	var claimed int
	f.hooks.Register(hook.OnQuestClaimed, 0, "test", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		claimed++
		return d, nil
	})

	res, err := f.svc.Claim(ctx, p.ID, "gather_ore")
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Applied.Gold)

	_, err = f.svc.Claim(ctx, p.ID, "gather_ore")
	assert.ErrorIs(t, err, goalerr.ErrAlreadyRewarded)
	assert.Equal(t, 1, claimed)

	var got model.Player
	require.NoError(t, f.db.First(&got, p.ID).Error)
	assert.Equal(t, int64(50), got.Gold, "reward applied exactly once")

	views, err := f.svc.ListActive(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Empty(t, views, "rewarded quests leave the active list")
}

type failingApplier struct{}

func (failingApplier) Apply(context.Context, reward.Grant) (*reward.Result, error) {
	return nil, errors.New("inventory full")
}

func TestClaim_RewardFailureRollsBack(t *testing.T) {
	f := newFixture(t, failingApplier{})
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)
	_, err := f.svc.Assign(ctx, p.ID, "gather_ore")
	require.NoError(t, err)
	_, err = f.svc.RecordEvent(ctx, p.ID, gather("iron_ore", 10))
	require.NoError(t, err)

	_, err = f.svc.Claim(ctx, p.ID, "gather_ore")
	assert.ErrorIs(t, err, goalerr.ErrRewardApplication)
	assert.False(t, goalerr.Retryable(err))

	rec, err := f.svc.Get(ctx, p.ID, "gather_ore")
	require.NoError(t, err)
	assert.False(t, rec.Rewarded, "claim flag rolled back")
	assert.Nil(t, rec.RewardedAt)
}

func TestRefreshDaily_SelectionOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)

	views, err := f.svc.RefreshDaily(ctx, p.ID)
	require.NoError(t, err)
	var ids []string
	for _, v := range views {
		ids = append(ids, v.QuestID)
	}
	// Same level: newest first. hunt_wolves is too high, old_daily inactive.
	assert.Equal(t, []string{"chop_wood", "craft_daily", "gather_ore", "market_weekly"}, ids)

	again, err := f.svc.RefreshDaily(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, again, "current cycle is already full")
}

func TestRefreshDaily_HigherLevelFirst(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.opts.DailyCount = 2
	p := testutil.CreatePlayer(t, f.db, "hero", 5)

	views, err := f.svc.RefreshDaily(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "hunt_wolves", views[0].QuestID)
	assert.Equal(t, "chop_wood", views[1].QuestID)
}

func TestRefreshDaily_NextCycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)

	_, err := f.svc.RefreshDaily(ctx, p.ID)
	require.NoError(t, err)
	// Finish gather_ore but leave it unclaimed; finish and claim chop_wood.
	_, err = f.svc.RecordEvent(ctx, p.ID, gather("iron_ore", 10))
	require.NoError(t, err)
	_, err = f.svc.RecordEvent(ctx, p.ID, gather("wood", 5))
	require.NoError(t, err)
	_, err = f.svc.Claim(ctx, p.ID, "chop_wood")
	require.NoError(t, err)

	f.clock = wednesday.Add(24 * time.Hour)
	views, err := f.svc.RefreshDaily(ctx, p.ID)
	require.NoError(t, err)
	var ids []string
	for _, v := range views {
		ids = append(ids, v.QuestID)
	}
	// gather_ore is still waiting to be claimed, so it is not re-offered.
	assert.ElementsMatch(t, []string{"chop_wood", "craft_daily"}, ids)

	_, err = f.svc.Claim(ctx, p.ID, "gather_ore")
	assert.NoError(t, err, "completed quests stay claimable after the reset")
}

func TestRefreshDaily_UnknownPlayer(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.RefreshDaily(context.Background(), 42)
	assert.ErrorIs(t, err, goalerr.ErrNotFound)
}

func TestAssign_ReplacesRewarded(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := testutil.CreatePlayer(t, f.db, "hero", 1)
	_, err := f.svc.Assign(ctx, p.ID, "goblin_scout")
	require.NoError(t, err)
	_, err = f.svc.RecordEvent(ctx, p.ID, progress.Event{Kind: catalog.KindCombat, Target: "goblin", Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, p.ID, "goblin_scout")
	var ge *goalerr.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, goalerr.DuplicateActive, ge.Kind)
	assert.Equal(t, true, ge.Details["completed"])

	_, err = f.svc.Claim(ctx, p.ID, "goblin_scout")
	require.NoError(t, err)
	rec, err := f.svc.Assign(ctx, p.ID, "goblin_scout")
	require.NoError(t, err)
	assert.False(t, rec.Completed)
	assert.False(t, rec.Rewarded)
}
