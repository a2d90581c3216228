package gate

import (
	"fmt"

	"github.com/UnderhillForge/PiTrader/config"
	"github.com/UnderhillForge/PiTrader/market"
	"github.com/UnderhillForge/PiTrader/risk"
)

// EntryReport is the outcome of the entry quality gate for one decision.
type EntryReport struct {
	OK       bool
	Reason   string
	VolSpike float64
	MinRR    float64
}

// CheckEntry enforces minimum pump score, a live volatility spike, and a
// risk/reward floor. The floor is the sleeve minimum plus the regime add.
func CheckEntry(cfg config.EntryConfig, pumpScore int, bundle market.ATRBundle, rr float64, safeSleeve bool, minRRAdd float64) EntryReport {
	report := EntryReport{}

	if pumpScore < cfg.MinPumpScore {
		report.Reason = fmt.Sprintf("pump_score<%d", cfg.MinPumpScore)
		return report
	}

	spike, ok := risk.VolSpikeRatio(bundle.OneHour, bundle.SixHour)
	if !ok {
		report.Reason = "vol_spike_unavailable"
		return report
	}
	report.VolSpike = spike
	if spike < cfg.MinVolSpike {
		report.Reason = fmt.Sprintf("vol_spike<%.2f", cfg.MinVolSpike)
		return report
	}

	minRR := cfg.MinRRAggressive
	if safeSleeve {
		minRR = cfg.MinRRSafe
	}
	minRR += minRRAdd
	report.MinRR = minRR
	if rr < minRR {
		report.Reason = fmt.Sprintf("rr<%.2f", minRR)
		return report
	}

	report.OK = true
	return report
}
