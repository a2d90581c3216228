package portfolio

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnderhillForge/PiTrader/config"
)

func newBook(t *testing.T, baseEquity float64) *Book {
	t.Helper()
	cfg := config.Default()
	b, err := NewBook(cfg.Engine, cfg.Risk, baseEquity, nil, zerolog.Nop())
	require.NoError(t, err)
	return b
}

func TestEquityFlooredAtZero(t *testing.T) {
	b := newBook(t, 1000)
	b.AddRealized(-1500)
	assert.Equal(t, 0.0, b.Equity())
}

func TestNuclearModeBelowThreshold(t *testing.T) {
	b := newBook(t, 5000)
	b.Rebalance(time.Now().UTC())

	assert.Equal(t, ModeNuclear, b.Mode())
	aggr, safe := b.Sleeves()
	assert.Equal(t, 5000.0, aggr)
	assert.Equal(t, 0.0, safe)
	// Everything is the budget in nuclear mode.
	assert.Equal(t, 5000.0, b.Budget(false))
	assert.Equal(t, 5000.0, b.Budget(true))
}

func TestHybridSplitAboveThreshold(t *testing.T) {
	b := newBook(t, 20000)
	b.Rebalance(time.Now().UTC())

	assert.Equal(t, ModeHybrid, b.Mode())
	aggr, safe := b.Sleeves()
	assert.InDelta(t, 2000, aggr, 1e-9) // 10% of 20k
	assert.InDelta(t, 18000, safe, 1e-9)
	assert.Equal(t, aggr, b.Budget(false))
	assert.Equal(t, safe, b.Budget(true))
}

func TestHybridMinAggressiveFloor(t *testing.T) {
	b := newBook(t, 10000) // 10% would be exactly the floor
	b.AddRealized(500)
	b.Rebalance(time.Now().UTC())

	require.Equal(t, ModeHybrid, b.Mode())
	aggr, _ := b.Sleeves()
	assert.InDelta(t, 1050, aggr, 1e-9)
}

func TestRebalanceSkipsSmallDrift(t *testing.T) {
	b := newBook(t, 20000)
	now := time.Now().UTC()
	b.Rebalance(now)
	aggrBefore, _ := b.Sleeves()

	// 2% equity move: under the 5% drift threshold, sleeves stay put.
	b.AddRealized(400)
	b.Rebalance(now.Add(time.Minute))
	aggrAfter, _ := b.Sleeves()
	assert.Equal(t, aggrBefore, aggrAfter)

	// 20% move: resplit.
	b.AddRealized(4000)
	b.Rebalance(now.Add(2 * time.Minute))
	aggrAfter, _ = b.Sleeves()
	assert.InDelta(t, 2440, aggrAfter, 1e-9)
}

func TestTradeBalanceCap(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.TradeBalanceCap = 15000
	b, err := NewBook(cfg.Engine, cfg.Risk, 50000, nil, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 50000.0, b.Equity())
	assert.Equal(t, 15000.0, b.TradingEquity())

	b.Rebalance(time.Now().UTC())
	aggr, safe := b.Sleeves()
	assert.InDelta(t, 1500, aggr, 1e-9)
	assert.InDelta(t, 13500, safe, 1e-9)
}

func TestRiskPctPerSleeve(t *testing.T) {
	b := newBook(t, 5000)
	assert.Equal(t, 0.015, b.RiskPct(true))
	assert.Equal(t, 0.12, b.RiskPct(false))
}
