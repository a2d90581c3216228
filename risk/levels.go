// Package risk holds the pure price-level math: ATR computation, stop and
// take-profit derivation, and risk/reward ratios. Nothing here touches the
// caches or the store.
package risk

// ATR multiplier pairs for derived stops and targets. Pump setups get the
// tighter pair because the expected hold is short.
const (
	PumpScoreTight = 60

	tightStopATR = 1.8
	tightTPATR   = 2.7
	wideStopATR  = 2.5
	wideTPATR    = 3.8
)

// DeriveStopTakeProfit derives stop and take-profit levels from the entry and
// an ATR value. Returns ok=false when no ATR is available.
func DeriveStopTakeProfit(long bool, entry, atr float64, pumpScore int) (stop, takeProfit float64, ok bool) {
	if atr <= 0 {
		return 0, 0, false
	}

	stopMult, tpMult := wideStopATR, wideTPATR
	if pumpScore >= PumpScoreTight {
		stopMult, tpMult = tightStopATR, tightTPATR
	}

	if long {
		return entry - stopMult*atr, entry + tpMult*atr, true
	}
	return entry + stopMult*atr, entry - tpMult*atr, true
}

// RR returns the planned reward/risk ratio from entry to the stop and
// take-profit levels. Degenerate geometry (risk or reward not positive)
// returns 0.
func RR(long bool, entry, stop, takeProfit float64) float64 {
	var risk, reward float64
	if long {
		risk = entry - stop
		reward = takeProfit - entry
	} else {
		risk = stop - entry
		reward = entry - takeProfit
	}
	if risk <= 0 || reward <= 0 {
		return 0
	}
	return reward / risk
}

// RRNow returns the realized reward/risk ratio of an open position at the
// current price. ok=false when the stop geometry is degenerate (risk <= 0),
// in which case the monitoring triggers that consume it must not fire.
func RRNow(long bool, entry, stop, current float64) (float64, bool) {
	var risk, reward float64
	if long {
		risk = entry - stop
		reward = current - entry
	} else {
		risk = stop - entry
		reward = entry - current
	}
	if risk <= 0 {
		return 0, false
	}
	return reward / risk, true
}

// VolSpikeRatio returns ATR(1h)/ATR(6h), the short-horizon volatility spike
// used by the entry gate. ok=false when either horizon is missing.
func VolSpikeRatio(atr1h, atr6h float64) (float64, bool) {
	if atr1h <= 0 || atr6h <= 0 {
		return 0, false
	}
	return atr1h / atr6h, true
}
