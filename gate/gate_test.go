package gate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnderhillForge/PiTrader/broker"
	"github.com/UnderhillForge/PiTrader/config"
	"github.com/UnderhillForge/PiTrader/market"
)

func qualityCache(n int, now time.Time) *market.Cache {
	cache := market.NewCache()
	basket := make([]string, n)
	for i := range basket {
		asset := fmt.Sprintf("A%02d-PERP-INTX", i)
		basket[i] = asset
		cache.SetPrice(asset, 100, now)
		cache.SetATR(asset, market.ATRBundle{OneHour: 1, SixHour: 2})
	}
	cache.SetBasket(basket)
	return cache
}

func TestDataQualityBasketTooSmall(t *testing.T) {
	now := time.Now().UTC()
	report := CheckDataQuality(qualityCache(5, now), config.Default().DataQ, now)
	assert.False(t, report.OK)
	assert.Equal(t, "basket_too_small", report.Reason)
}

func TestDataQualityPasses(t *testing.T) {
	now := time.Now().UTC()
	report := CheckDataQuality(qualityCache(20, now), config.Default().DataQ, now)
	require.True(t, report.OK)
	assert.Equal(t, 20, report.SampleSize)
	assert.Equal(t, 1.0, report.FreshRatio)
	assert.Equal(t, 1.0, report.ATRCoverage)
}

func TestDataQualityStalePrices(t *testing.T) {
	now := time.Now().UTC()
	cache := qualityCache(20, now.Add(-time.Minute)) // every price a minute old
	report := CheckDataQuality(cache, config.Default().DataQ, now)
	assert.False(t, report.OK)
	assert.Equal(t, "stale_price_data", report.Reason)
}

func TestDataQualityInvalidPrice(t *testing.T) {
	now := time.Now().UTC()
	cache := qualityCache(20, now)
	cache.SetPrice("A05-PERP-INTX", 0, now)
	report := CheckDataQuality(cache, config.Default().DataQ, now)
	assert.False(t, report.OK)
	assert.Equal(t, "invalid_or_missing_prices", report.Reason)
}

func TestDataQualityATRCoverageLow(t *testing.T) {
	now := time.Now().UTC()
	cache := market.NewCache()
	basket := make([]string, 20)
	for i := range basket {
		asset := fmt.Sprintf("A%02d-PERP-INTX", i)
		basket[i] = asset
		cache.SetPrice(asset, 100, now)
		if i < 5 {
			cache.SetATR(asset, market.ATRBundle{SixHour: 2})
		}
	}
	cache.SetBasket(basket)

	report := CheckDataQuality(cache, config.Default().DataQ, now)
	assert.False(t, report.OK)
	assert.Equal(t, "atr_coverage_low", report.Reason)
	assert.InDelta(t, 0.25, report.ATRCoverage, 1e-9)
}

func TestCheckEntryPumpScoreFloor(t *testing.T) {
	cfg := config.Default().Entry
	report := CheckEntry(cfg, 10, market.ATRBundle{OneHour: 2, SixHour: 2}, 3.0, false, 0)
	assert.False(t, report.OK)
	assert.Equal(t, "pump_score<15", report.Reason)
}

func TestCheckEntryVolSpike(t *testing.T) {
	cfg := config.Default().Entry

	report := CheckEntry(cfg, 50, market.ATRBundle{SixHour: 2}, 3.0, false, 0)
	assert.Equal(t, "vol_spike_unavailable", report.Reason)

	report = CheckEntry(cfg, 50, market.ATRBundle{OneHour: 1, SixHour: 2}, 3.0, false, 0)
	assert.Equal(t, "vol_spike<1.00", report.Reason)
}

func TestCheckEntryRRFloorWithRegimeAdd(t *testing.T) {
	cfg := config.Default().Entry
	bundle := market.ATRBundle{OneHour: 2.5, SixHour: 2}

	// Safe sleeve floor 2.0 plus chop add 0.2 makes 2.2.
	report := CheckEntry(cfg, 50, bundle, 2.1, true, 0.2)
	assert.False(t, report.OK)
	assert.Equal(t, "rr<2.20", report.Reason)

	report = CheckEntry(cfg, 50, bundle, 2.3, true, 0.2)
	assert.True(t, report.OK)

	// Aggressive floor is lower.
	report = CheckEntry(cfg, 50, bundle, 1.6, false, 0)
	assert.True(t, report.OK)
}

func floatPtr(v float64) *float64 { return &v }

func TestCheckMicroHardSpread(t *testing.T) {
	liq := market.Liquidity{SpreadPct: floatPtr(1.2)}
	report := CheckMicro(liq, market.Micro{}, broker.Buy, 500, 0.35)
	assert.False(t, report.OK)
	assert.Equal(t, "spread>0.88%", report.Reason) // 0.35 * 2.5
}

func TestCheckMicroDepthFloor(t *testing.T) {
	micro := market.Micro{
		BidDepthUSD: floatPtr(2000),
		AskDepthUSD: floatPtr(3000),
	}
	report := CheckMicro(market.Liquidity{}, micro, broker.Buy, 500, 0.35)
	assert.False(t, report.OK)
	assert.Equal(t, "depth<10000usd", report.Reason)

	// Larger notional scales the requirement.
	micro = market.Micro{BidDepthUSD: floatPtr(10000), AskDepthUSD: floatPtr(1000)}
	report = CheckMicro(market.Liquidity{}, micro, broker.Buy, 20000, 0.35)
	assert.False(t, report.OK)
	assert.Equal(t, "depth<24000usd", report.Reason)
}

func TestCheckMicroMissingDataPasses(t *testing.T) {
	report := CheckMicro(market.Liquidity{}, market.Micro{}, broker.Buy, 500, 0.35)
	assert.True(t, report.OK)
	assert.Equal(t, 0, report.Penalty)
}

func TestCheckMicroPenalties(t *testing.T) {
	micro := market.Micro{
		OBImbalance:  floatPtr(0.40), // strongly ask-heavy
		TapeDeltaPct: floatPtr(-15),  // strong selling tape
	}
	report := CheckMicro(market.Liquidity{}, micro, broker.Buy, 500, 0.35)
	require.True(t, report.OK)
	assert.Equal(t, 40, report.Penalty)

	// The same book is a tailwind for a sell.
	report = CheckMicro(market.Liquidity{}, micro, broker.Sell, 500, 0.35)
	require.True(t, report.OK)
	assert.Equal(t, 0, report.Penalty)

	// Mild headwinds score 10 each.
	micro = market.Micro{OBImbalance: floatPtr(0.48), TapeDeltaPct: floatPtr(-2)}
	report = CheckMicro(market.Liquidity{}, micro, broker.Buy, 500, 0.35)
	assert.Equal(t, 20, report.Penalty)
}
