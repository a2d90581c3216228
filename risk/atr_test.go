package risk

import (
	"testing"

	"github.com/UnderhillForge/PiTrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeATRNotEnoughData(t *testing.T) {
	candles := []market.Candle{
		{High: 10, Low: 9, Close: 9.5},
		{High: 11, Low: 10, Close: 10.5},
	}
	_, ok := ComputeATR(candles, 14)
	assert.False(t, ok)

	_, ok = ComputeATR(candles, 0)
	assert.False(t, ok)
}

func TestComputeATRSimpleMean(t *testing.T) {
	// Constant 1-point ranges with no gaps: every true range is 1.
	candles := make([]market.Candle, 0, 15)
	for i := 0; i < 15; i++ {
		base := 100.0
		candles = append(candles, market.Candle{High: base + 1, Low: base, Close: base + 0.5})
	}
	atr, ok := ComputeATR(candles, 14)
	require.True(t, ok)
	assert.InDelta(t, 1.0, atr, 1e-9)
}

func TestComputeATRGapDominates(t *testing.T) {
	candles := []market.Candle{
		{High: 10, Low: 9, Close: 10},
		{High: 15, Low: 14, Close: 14.5}, // gap up: TR = |15-10| = 5
		{High: 15, Low: 14, Close: 14.5},
	}
	atr, ok := ComputeATR(candles, 2)
	require.True(t, ok)
	assert.InDelta(t, 3.0, atr, 1e-9) // (5 + 1) / 2
}

func TestNormalizeATRBundle(t *testing.T) {
	b := NormalizeATRBundle(market.ATRBundle{OneHour: 2})
	require.True(t, b.Has6h())
	assert.InDelta(t, 4.898979, b.SixHour, 1e-5)

	b = NormalizeATRBundle(market.ATRBundle{SixHour: 4.898979})
	require.True(t, b.Has1h())
	assert.InDelta(t, 2.0, b.OneHour, 1e-5)
}
