// Package regime classifies the market into trend / chop / high_vol from a
// reference asset's recent price window and 6h ATR, and maps each regime to
// a risk profile (risk multiplier, leverage cap, minimum-RR add).
package regime

import (
	"math"
	"sync"
	"time"

	"github.com/UnderhillForge/PiTrader/config"
	"github.com/UnderhillForge/PiTrader/market"
)

type Regime string

const (
	Trend   Regime = "trend"
	Chop    Regime = "chop"
	HighVol Regime = "high_vol"
)

// minSamples is the smallest price window the classifier will act on.
const minSamples = 20

// Profile is the sizing triple for the current regime.
type Profile struct {
	Regime      Regime
	RiskMult    float64
	LeverageCap int
	MinRRAdd    float64
}

// Metrics records what the last classification saw, for telemetry.
type Metrics struct {
	TotalReturnPct float64
	NoisePct       float64
	ATRPct         float64
	Samples        int
	Reason         string // set when the classifier fell back to chop
}

// Classifier derives the regime from the shared market cache. It is the
// single writer of its own state; everyone else reads Profile().
type Classifier struct {
	cfg   config.RegimeConfig
	cache *market.Cache

	mu      sync.Mutex
	current Regime
	metrics Metrics
	asset   string
	lastAt  time.Time
}

func NewClassifier(cfg config.RegimeConfig, cache *market.Cache) *Classifier {
	return &Classifier{cfg: cfg, cache: cache, current: Chop}
}

// selectAsset prefers the configured reference asset when it has history,
// falling back to the first basket member.
func (c *Classifier) selectAsset() string {
	if c.cfg.Asset != "" && len(c.cache.History(c.cfg.Asset, 1)) > 0 {
		return c.cfg.Asset
	}
	if basket := c.cache.Basket(); len(basket) > 0 {
		return basket[0]
	}
	return c.cfg.Asset
}

// Classify recomputes the regime from the current price window and ATR.
func (c *Classifier) Classify() Regime {
	asset := c.selectAsset()
	history := c.cache.History(asset, c.cfg.LookbackPoints)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.asset = asset
	c.lastAt = time.Now().UTC()

	if len(history) < minSamples {
		c.current = Chop
		c.metrics = Metrics{Reason: "insufficient_history", Samples: len(history)}
		return c.current
	}

	first, last := history[0], history[len(history)-1]
	if first <= 0 || last <= 0 {
		c.current = Chop
		c.metrics = Metrics{Reason: "invalid_prices", Samples: len(history)}
		return c.current
	}

	totalReturnPct := (last - first) / first * 100

	var noiseSum float64
	var noiseN int
	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		noiseSum += math.Abs((cur-prev)/prev) * 100
		noiseN++
	}
	noisePct := 0.0
	if noiseN > 0 {
		noisePct = noiseSum / float64(noiseN)
	}

	var atrPct float64
	if bundle, ok := c.cache.ATR(asset); ok && bundle.Has6h() {
		atrPct = bundle.SixHour / last * 100
	}

	switch {
	case atrPct >= c.cfg.HighVolATRPct:
		c.current = HighVol
	case math.Abs(totalReturnPct) >= c.cfg.TrendReturnPct &&
		math.Abs(totalReturnPct) >= noisePct*c.cfg.TrendNoiseRatio:
		c.current = Trend
	default:
		c.current = Chop
	}

	c.metrics = Metrics{
		TotalReturnPct: totalReturnPct,
		NoisePct:       noisePct,
		ATRPct:         atrPct,
		Samples:        len(history),
	}
	return c.current
}

// Current returns the last classified regime without recomputing.
func (c *Classifier) Current() Regime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// LastMetrics returns the metrics of the last classification.
func (c *Classifier) LastMetrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Profile maps the current regime onto its configured sizing triple.
func (c *Classifier) Profile() Profile {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	return profileFor(current, c.cfg)
}

func profileFor(r Regime, cfg config.RegimeConfig) Profile {
	var p config.RegimeProfileConfig
	switch r {
	case Trend:
		p = cfg.Trend
	case HighVol:
		p = cfg.HighVol
	default:
		r = Chop
		p = cfg.Chop
	}
	return Profile{Regime: r, RiskMult: p.RiskMult, LeverageCap: p.LeverageCap, MinRRAdd: p.MinRRAdd}
}
