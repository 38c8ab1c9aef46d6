package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseCfg() Config {
	return Config{MaxPositions: 3, MaxSameDirection: 2, MaxDailyLoss: 0.05, ConsecutiveLossLimit: 3, CooldownMinutes: 30}
}

func TestCanEnterAllowsWithinLimits(t *testing.T) {
	g := NewGate(baseCfg())
	ok, reason := g.CanEnter(Long)
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)
}

func TestCanEnterRejectsMaxPositions(t *testing.T) {
	g := NewGate(baseCfg())
	g.SetOpenCounts(3, 0, map[Direction]int{})
	ok, reason := g.CanEnter(Long)
	assert.False(t, ok)
	assert.Equal(t, ReasonMaxPositions, reason)
}

func TestCanEnterRejectsMaxSameDirection(t *testing.T) {
	g := NewGate(baseCfg())
	g.SetOpenCounts(0, 0, map[Direction]int{Long: 2})
	ok, reason := g.CanEnter(Long)
	assert.False(t, ok)
	assert.Equal(t, ReasonMaxSameDirection, reason)
}

// TestConsecutiveLossCooldown covers S4: three losses trigger a cooldown,
// consecutiveLosses resets to 0, and canEnter rejects during the window.
func TestConsecutiveLossCooldown(t *testing.T) {
	g := NewGate(baseCfg())
	g.RecordPnl(-0.01)
	g.RecordPnl(-0.01)
	ok, _ := g.CanEnter(Long)
	require.True(t, ok) // not yet tripped

	g.RecordPnl(-0.01)
	ok, reason := g.CanEnter(Long)
	assert.False(t, ok)
	assert.Equal(t, ReasonCooldown, reason)

	snap := g.Snapshot()
	assert.Equal(t, 0, snap.ConsecutiveLosses)
	assert.True(t, snap.CooldownUntil.After(time.Now()))
}

func TestWinResetsConsecutiveLosses(t *testing.T) {
	g := NewGate(baseCfg())
	g.RecordPnl(-0.01)
	g.RecordPnl(-0.01)
	g.RecordPnl(0.02)
	snap := g.Snapshot()
	assert.Equal(t, 0, snap.ConsecutiveLosses)
	assert.Equal(t, 1, snap.TodayWinCount)
	assert.Equal(t, 2, snap.TodayLossCount)
}

func TestDailyLossCapRejects(t *testing.T) {
	cfg := baseCfg()
	cfg.MaxDailyLoss = 0.02
	g := NewGate(cfg)
	g.RecordPnl(-0.025)
	ok, reason := g.CanEnter(Long)
	assert.False(t, ok)
	assert.Equal(t, ReasonDailyLoss, reason)
}

func TestDailyLossMonotonicWithinDay(t *testing.T) {
	g := NewGate(baseCfg())
	g.RecordPnl(-0.01)
	first := g.Snapshot().DailyLoss
	g.RecordPnl(-0.01)
	second := g.Snapshot().DailyLoss
	assert.Greater(t, second, first)
}

func TestCanEnterPureGivenSameSnapshot(t *testing.T) {
	g := NewGate(baseCfg())
	g.SetOpenCounts(1, 0, map[Direction]int{Long: 1})
	ok1, r1 := g.CanEnter(Long)
	ok2, r2 := g.CanEnter(Long)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, r1, r2)
}
