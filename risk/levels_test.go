package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStopTakeProfitPumpLong(t *testing.T) {
	// BTC at 50,000 with ATR(1h)=500 and pump score 70 uses the tight pair:
	// stop = 50000 - 1.8*500, tp = 50000 + 2.7*500.
	stop, tp, ok := DeriveStopTakeProfit(true, 50000, 500, 70)
	require.True(t, ok)
	assert.InDelta(t, 49100, stop, 1e-9)
	assert.InDelta(t, 51350, tp, 1e-9)

	rr := RR(true, 50000, stop, tp)
	assert.InDelta(t, 1.5, rr, 1e-9)
}

func TestDeriveStopTakeProfitWideShort(t *testing.T) {
	stop, tp, ok := DeriveStopTakeProfit(false, 100, 2, 30)
	require.True(t, ok)
	assert.InDelta(t, 105.0, stop, 1e-9)
	assert.InDelta(t, 92.4, tp, 1e-9)
}

func TestDeriveStopTakeProfitNoATR(t *testing.T) {
	_, _, ok := DeriveStopTakeProfit(true, 100, 0, 80)
	assert.False(t, ok)
}

func TestRRDegenerate(t *testing.T) {
	// Stop on the wrong side of entry yields 0, not a negative ratio.
	assert.Zero(t, RR(true, 100, 110, 120))
	assert.Zero(t, RR(false, 100, 90, 80))
}

func TestRRNow(t *testing.T) {
	rr, ok := RRNow(true, 100, 90, 116)
	require.True(t, ok)
	assert.InDelta(t, 1.6, rr, 1e-9)

	rr, ok = RRNow(false, 100, 110, 85)
	require.True(t, ok)
	assert.InDelta(t, 1.5, rr, 1e-9)

	_, ok = RRNow(true, 100, 100, 120)
	assert.False(t, ok)
}

func TestVolSpikeRatio(t *testing.T) {
	v, ok := VolSpikeRatio(3, 2)
	require.True(t, ok)
	assert.InDelta(t, 1.5, v, 1e-9)

	_, ok = VolSpikeRatio(0, 2)
	assert.False(t, ok)
}
