// Package gate holds the pre-trade checks: basket-wide data quality, the
// per-trade entry quality gate, and the microstructure gate.
package gate

import (
	"time"

	"github.com/UnderhillForge/PiTrader/config"
	"github.com/UnderhillForge/PiTrader/market"
)

// maxSampleAssets caps how many basket members the quality sweep inspects.
const maxSampleAssets = 40

// QualityReport is the outcome of one data quality sweep.
type QualityReport struct {
	OK          bool
	Reason      string
	BasketSize  int
	SampleSize  int
	FreshRatio  float64
	ATRCoverage float64
}

// CheckDataQuality sweeps a sample of the basket and blocks trading when
// prices are missing, stale, or ATR coverage is too thin to size stops.
func CheckDataQuality(cache *market.Cache, cfg config.DataQConfig, now time.Time) QualityReport {
	basket := cache.Basket()
	report := QualityReport{BasketSize: len(basket)}

	if len(basket) < cfg.MinBasketSize {
		report.Reason = "basket_too_small"
		return report
	}

	sample := basket
	if len(sample) > maxSampleAssets {
		sample = sample[:maxSampleAssets]
	}
	report.SampleSize = len(sample)

	var fresh, atrCovered int
	for _, asset := range sample {
		point, ok := cache.Price(asset)
		if !ok || point.Price <= 0 {
			report.Reason = "invalid_or_missing_prices"
			return report
		}
		if now.Sub(point.Time) < cfg.MaxPriceAge.Std() {
			fresh++
		}
		if bundle, ok := cache.ATR(asset); ok && bundle.Available() {
			atrCovered++
		}
	}

	report.FreshRatio = float64(fresh) / float64(len(sample))
	report.ATRCoverage = float64(atrCovered) / float64(len(sample))

	if report.FreshRatio < cfg.MinFreshRatio {
		report.Reason = "stale_price_data"
		return report
	}
	if report.ATRCoverage < cfg.MinATRCoverageRatio {
		report.Reason = "atr_coverage_low"
		return report
	}

	report.OK = true
	return report
}
