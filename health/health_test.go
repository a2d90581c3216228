package health

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnderhillForge/PiTrader/config"
)

func newMonitor(t *testing.T, mutate func(*config.HealthConfig)) *Monitor {
	t.Helper()
	cfg := config.Default().Health
	if mutate != nil {
		mutate(&cfg)
	}
	return NewMonitor(cfg, zerolog.Nop())
}

type fakeActions struct {
	closeCalls  int
	closeReason string
	rested      int
	parked      int
}

func (f *fakeActions) ForceCloseAll(_ context.Context, reason string) int {
	f.closeCalls++
	f.closeReason = reason
	return 3
}

func (f *fakeActions) RestInBase(context.Context) error { f.rested++; return nil }
func (f *fakeActions) Park(string) error                { f.parked++; return nil }

func TestFailureThresholds(t *testing.T) {
	m := newMonitor(t, nil)
	assert.Equal(t, Healthy, m.State())

	m.Failure("price_poll")
	assert.Equal(t, Healthy, m.State())
	m.Failure("price_poll")
	assert.Equal(t, Degraded, m.State())

	m.Failure("price_poll")
	m.Failure("price_poll")
	assert.Equal(t, Degraded, m.State())
	m.Failure("price_poll")
	assert.Equal(t, Outage, m.State())
	assert.Equal(t, "price_poll", m.LastFailureOp())
}

func TestRecoveryPath(t *testing.T) {
	m := newMonitor(t, nil)
	for i := 0; i < 5; i++ {
		m.Failure("order_open")
	}
	require.Equal(t, Outage, m.State())

	// One success leaves outage, the second completes recovery.
	m.Success()
	assert.Equal(t, Recovering, m.State())
	m.Success()
	assert.Equal(t, Healthy, m.State())
}

func TestRelapseDuringRecovery(t *testing.T) {
	m := newMonitor(t, nil)
	for i := 0; i < 5; i++ {
		m.Failure("order_open")
	}
	m.Success()
	require.Equal(t, Recovering, m.State())

	m.Failure("order_open")
	assert.Equal(t, Outage, m.State())
}

func TestDegradedRecoversAfterStreak(t *testing.T) {
	m := newMonitor(t, nil)
	m.Failure("price_poll")
	m.Failure("price_poll")
	require.Equal(t, Degraded, m.State())

	m.Success()
	assert.Equal(t, Degraded, m.State())
	m.Success()
	assert.Equal(t, Healthy, m.State())
}

func TestEntriesBlocked(t *testing.T) {
	m := newMonitor(t, nil)
	blocked, _ := m.EntriesBlocked()
	assert.False(t, blocked)

	// Degraded does not gate entries; only outage and recovering do.
	m.Failure("a")
	m.Failure("a")
	require.Equal(t, Degraded, m.State())
	blocked, _ = m.EntriesBlocked()
	assert.False(t, blocked)

	for i := 0; i < 3; i++ {
		m.Failure("a")
	}
	blocked, reason := m.EntriesBlocked()
	assert.True(t, blocked)
	assert.Equal(t, "health_outage", reason)

	m.Success()
	blocked, reason = m.EntriesBlocked()
	assert.True(t, blocked)
	assert.Equal(t, "health_recovering", reason)
}

func TestEntriesAllowedDuringRecoveryWhenConfigured(t *testing.T) {
	m := newMonitor(t, func(c *config.HealthConfig) { c.BlockRecovering = false })
	for i := 0; i < 5; i++ {
		m.Failure("a")
	}
	m.Success()
	require.Equal(t, Recovering, m.State())

	blocked, _ := m.EntriesBlocked()
	assert.False(t, blocked)
}

func TestOutageFlattenFiresOnce(t *testing.T) {
	m := newMonitor(t, func(c *config.HealthConfig) {
		c.OutageFlatten = config.Duration(time.Millisecond)
	})
	actions := &fakeActions{}

	// Healthy: nothing happens.
	m.CheckOutage(context.Background(), actions)
	assert.Equal(t, 0, actions.closeCalls)

	for i := 0; i < 5; i++ {
		m.Failure("a")
	}
	time.Sleep(5 * time.Millisecond)

	m.CheckOutage(context.Background(), actions)
	assert.Equal(t, 1, actions.closeCalls)
	assert.Equal(t, "outage_flatten", actions.closeReason)
	assert.Equal(t, 1, actions.rested)
	assert.Equal(t, 1, actions.parked)

	// Still in the same outage episode: does not fire again.
	m.CheckOutage(context.Background(), actions)
	assert.Equal(t, 1, actions.closeCalls)
}

func TestOutageFlattenRearmsAfterRecovery(t *testing.T) {
	m := newMonitor(t, func(c *config.HealthConfig) {
		c.OutageFlatten = config.Duration(time.Millisecond)
	})
	actions := &fakeActions{}

	for i := 0; i < 5; i++ {
		m.Failure("a")
	}
	time.Sleep(5 * time.Millisecond)
	m.CheckOutage(context.Background(), actions)
	require.Equal(t, 1, actions.closeCalls)

	m.Success()
	m.Success()
	require.Equal(t, Healthy, m.State())

	for i := 0; i < 5; i++ {
		m.Failure("a")
	}
	time.Sleep(5 * time.Millisecond)
	m.CheckOutage(context.Background(), actions)
	assert.Equal(t, 2, actions.closeCalls)
}
