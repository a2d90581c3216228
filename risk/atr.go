package risk

import (
	"math"

	"github.com/UnderhillForge/PiTrader/market"
)

// ComputeATR returns the average true range over the last period bars as a
// plain mean of true ranges. Requires period+1 candles (the first only seeds
// the previous close). Returns ok=false when there is not enough data.
func ComputeATR(candles []market.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}

	trs := make([]float64, 0, len(candles)-1)
	prevClose := candles[0].Close
	for _, c := range candles[1:] {
		tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
		trs = append(trs, tr)
		prevClose = c.Close
	}

	if len(trs) < period {
		return 0, false
	}

	var sum float64
	for _, tr := range trs[len(trs)-period:] {
		sum += tr
	}
	return sum / float64(period), true
}

// NormalizeATRBundle fills a missing horizon from the other one using
// square-root-of-time scaling (6 one-hour bars per 6h bar).
func NormalizeATRBundle(b market.ATRBundle) market.ATRBundle {
	if !b.Has6h() && b.Has1h() {
		b.SixHour = b.OneHour * math.Sqrt(6)
	}
	if !b.Has1h() && b.Has6h() {
		b.OneHour = b.SixHour / math.Sqrt(6)
	}
	return b
}
