package gate

import (
	"fmt"

	"github.com/UnderhillForge/PiTrader/broker"
	"github.com/UnderhillForge/PiTrader/market"
)

// Microstructure gate floors. The hard spread cap never drops below
// hardSpreadFloorPct and the depth requirement never below minDepthFloorUSD.
const (
	hardSpreadFloorPct = 0.80
	hardSpreadGuardX   = 2.5
	minDepthFloorUSD   = 10000.0
	minDepthNotionalX  = 1.2
	maxPenalty         = 40
)

// MicroReport is the outcome of the microstructure gate. A hard failure
// rejects the order; otherwise Penalty (0..40) is subtracted from the
// decision's conviction.
type MicroReport struct {
	OK      bool
	Reason  string
	Penalty int
}

// CheckMicro applies the hard spread and depth caps, then scores soft
// order-book and tape headwinds as a conviction penalty. Missing micro data
// passes: thin telemetry must not block an otherwise valid entry.
func CheckMicro(liq market.Liquidity, micro market.Micro, side broker.Side, notional, guardSpreadPct float64) MicroReport {
	report := MicroReport{}

	hardCap := hardSpreadFloorPct
	if scaled := guardSpreadPct * hardSpreadGuardX; scaled > hardCap {
		hardCap = scaled
	}
	if liq.SpreadPct != nil && *liq.SpreadPct > hardCap {
		report.Reason = fmt.Sprintf("spread>%.2f%%", hardCap)
		return report
	}

	minDepth := minDepthFloorUSD
	if scaled := notional * minDepthNotionalX; scaled > minDepth {
		minDepth = scaled
	}
	if depth, ok := micro.TotalDepthUSD(); ok && depth > 0 && depth < minDepth {
		report.Reason = fmt.Sprintf("depth<%.0fusd", minDepth)
		return report
	}

	report.OK = true
	report.Penalty = microPenalty(micro, side)
	return report
}

// microPenalty scores order-book imbalance and tape delta against the trade
// direction. Each signal contributes 0, 10 or 20 points.
func microPenalty(micro market.Micro, side broker.Side) int {
	penalty := 0

	if micro.OBImbalance != nil {
		imb := *micro.OBImbalance
		if side == broker.Buy {
			switch {
			case imb < 0.45:
				penalty += 20
			case imb < 0.50:
				penalty += 10
			}
		} else {
			switch {
			case imb > 0.55:
				penalty += 20
			case imb > 0.50:
				penalty += 10
			}
		}
	}

	if micro.TapeDeltaPct != nil {
		tape := *micro.TapeDeltaPct
		if side == broker.Buy {
			switch {
			case tape < -10:
				penalty += 20
			case tape < 0:
				penalty += 10
			}
		} else {
			switch {
			case tape > 10:
				penalty += 20
			case tape > 0:
				penalty += 10
			}
		}
	}

	if penalty > maxPenalty {
		penalty = maxPenalty
	}
	return penalty
}
