package achievement

import (
	"testing"
	"time"

	"github.com/kasuganosora/textrpg/game/progress"
	"github.com/kasuganosora/textrpg/model"
	"github.com/kasuganosora/textrpg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoal_TrackerSaturatesAtFinalTier(t *testing.T) {
	def, ok := testutil.Catalog(t).Achievement("miner")
	require.True(t, ok)
	rec := &model.AchievementProgress{PlayerID: 1, AchievementID: "miner", Progress: 50, CurrentTier: 2}
	g := newGoal(def, rec)
	now := time.Now()

	changed, completed := progress.Tracker{}.ApplyAll([]progress.Goal{g}, ore(25), now)
	require.Len(t, changed, 1)
	require.Len(t, completed, 1)
	assert.Equal(t, 60, rec.Progress)
	assert.True(t, rec.Completed)
	assert.Equal(t, &now, rec.CompletedAt)
	assert.Equal(t, 2, g.oldTier, "tier is advanced by the service, not the tracker")

	changed, _ = progress.Tracker{}.ApplyAll([]progress.Goal{g}, ore(5), now)
	assert.Empty(t, changed, "completed achievements are skipped")
}
