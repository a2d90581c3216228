package drawdown

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnderhillForge/PiTrader/config"
)

type fakeActions struct {
	closeCalls  int
	closeReason string
	parkCalls   int
	parkReason  string
}

func (f *fakeActions) ForceCloseAll(_ context.Context, reason string) int {
	f.closeCalls++
	f.closeReason = reason
	return 2
}

func (f *fakeActions) Park(reason string) error {
	f.parkCalls++
	f.parkReason = reason
	return nil
}

func newGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := NewGuard(config.Default().Drawdown, nil, zerolog.Nop())
	require.NoError(t, err)
	return g
}

// midday keeps intra-day offsets inside one calendar date.
func midday() time.Time {
	return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
}

func TestEvaluateWithinLimits(t *testing.T) {
	g := newGuard(t)
	now := midday()

	g.Record(10000, now.Add(-time.Hour))
	st := g.Evaluate(9700, now) // 3% off the daily peak
	assert.False(t, st.Breached)
	assert.InDelta(t, 3.0, st.DailyPct, 1e-9)

	paused, _ := g.Paused()
	assert.False(t, paused)
}

func TestDailyBreachLatchesPause(t *testing.T) {
	g := newGuard(t)
	now := midday()

	g.Record(10000, now.Add(-time.Hour))
	st := g.Evaluate(9400, now) // 6% dip against the 5% daily limit
	require.True(t, st.Breached)
	assert.Equal(t, "daily", st.Reason)
	assert.InDelta(t, 6.0, st.DailyPct, 1e-9)

	paused, reason := g.Paused()
	assert.True(t, paused)
	assert.Contains(t, reason, "daily: daily=6.00%")

	// Equity recovering does not clear the latch.
	st = g.Evaluate(10000, now.Add(time.Minute))
	assert.False(t, st.Breached)
	paused, _ = g.Paused()
	assert.True(t, paused)
}

func TestWeeklyBreachOutsideDailyWindow(t *testing.T) {
	g := newGuard(t)
	now := midday()

	// The peak sits outside the 24h window, so only the weekly limit sees it.
	g.Record(12000, now.Add(-3*24*time.Hour))
	g.Record(9900, now.Add(-time.Hour))
	st := g.Evaluate(9800, now) // 18.3% off the weekly peak
	require.True(t, st.Breached)
	assert.Equal(t, "weekly", st.Reason)
}

func TestBreachPriorityDailyFirst(t *testing.T) {
	g := newGuard(t)
	now := midday()

	g.Record(20000, now.Add(-time.Hour))
	// 40% off everything at once: reported as daily.
	st := g.Evaluate(12000, now)
	require.True(t, st.Breached)
	assert.Equal(t, "daily", st.Reason)
}

func TestEnforcePauseRunsOnce(t *testing.T) {
	g := newGuard(t)
	now := midday()
	actions := &fakeActions{}

	g.EnforcePause(context.Background(), actions, "daily")
	assert.Equal(t, 0, actions.closeCalls)

	g.Record(10000, now.Add(-time.Hour))
	st := g.Evaluate(9000, now)
	require.True(t, st.Breached)

	g.EnforcePause(context.Background(), actions, st.Reason)
	assert.Equal(t, 1, actions.closeCalls)
	assert.Equal(t, "drawdown_daily", actions.closeReason)
	assert.Equal(t, 1, actions.parkCalls)

	g.EnforcePause(context.Background(), actions, st.Reason)
	assert.Equal(t, 1, actions.closeCalls)
}

func TestEntriesBlockedReason(t *testing.T) {
	g := newGuard(t)
	now := midday()

	blocked, _ := g.EntriesBlocked()
	assert.False(t, blocked)

	g.Record(10000, now.Add(-time.Hour))
	g.Evaluate(9000, now)

	blocked, reason := g.EntriesBlocked()
	assert.True(t, blocked)
	assert.Contains(t, reason, "drawdown_pause")
}

func TestDailyPeakResetsAtDayBoundary(t *testing.T) {
	g := newGuard(t)
	lateEvening := time.Date(2026, 8, 27, 23, 0, 0, 0, time.UTC)
	earlyMorning := time.Date(2026, 8, 28, 1, 0, 0, 0, time.UTC)

	g.Record(10000, lateEvening)
	st := g.Evaluate(9400, earlyMorning)

	// Yesterday's peak belongs to yesterday: today opens at 9400.
	assert.InDelta(t, 0.0, st.DailyPct, 1e-9)
	assert.False(t, st.Breached)
	// The rolling weekly window still sees the fall.
	assert.InDelta(t, 6.0, st.WeeklyPct, 1e-9)
}

func TestHistoryPruning(t *testing.T) {
	g := newGuard(t)
	now := midday()

	g.Record(12000, now.Add(-10*24*time.Hour)) // outside the 8 day window
	g.Record(10000, now.Add(-time.Hour))

	st := g.Evaluate(9800, now)
	assert.False(t, st.Breached)
	// The pruned point no longer drives the weekly window.
	assert.InDelta(t, 2.0, st.WeeklyPct, 1e-9)
	// The all-time high survives pruning.
	assert.InDelta(t, (12000.0-9800.0)/12000.0*100, st.ATHPct, 1e-9)
}
