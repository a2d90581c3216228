// Package portfolio tracks equity and splits it into an aggressive and a
// safe sleeve. Small accounts run nuclear (everything aggressive); past the
// split threshold the book goes hybrid and rebalances on drift.
package portfolio

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnderhillForge/PiTrader/config"
	"github.com/UnderhillForge/PiTrader/store"
)

const (
	ModeNuclear = "nuclear"
	ModeHybrid  = "hybrid"
)

// rebalanceDriftPct is the sleeve drift that triggers a re-split.
const rebalanceDriftPct = 5.0

// Book owns the equity model and the sleeve split.
type Book struct {
	engine config.EngineConfig
	risk   config.RiskConfig
	st     store.Store
	log    zerolog.Logger

	mu          sync.Mutex
	baseEquity  float64
	simRealized float64
	mode        string
	aggr        float64
	safe        float64
}

// NewBook restores the persisted sleeve split when one exists.
func NewBook(engine config.EngineConfig, risk config.RiskConfig, baseEquity float64, st store.Store, log zerolog.Logger) (*Book, error) {
	b := &Book{
		engine:     engine,
		risk:       risk,
		st:         st,
		log:        log.With().Str("component", "portfolio").Logger(),
		baseEquity: baseEquity,
		mode:       ModeNuclear,
	}
	if st != nil {
		state, ok, err := st.LoadPortfolioState()
		if err != nil {
			return nil, fmt.Errorf("load portfolio state: %w", err)
		}
		if ok {
			b.mode = state.Mode
			b.aggr = state.Aggr
			b.safe = state.Safe
		}
	}
	return b, nil
}

// AddRealized credits (or debits) realized PnL into the sim equity.
func (b *Book) AddRealized(pnl float64) {
	b.mu.Lock()
	b.simRealized += pnl
	b.mu.Unlock()
}

// Realized is the cumulative realized PnL credited into the book.
func (b *Book) Realized() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.simRealized
}

// Equity is the current simulated account equity, floored at zero.
func (b *Book) Equity() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.equityLocked()
}

func (b *Book) equityLocked() float64 {
	eq := b.baseEquity + b.simRealized
	if eq < 0 {
		return 0
	}
	return eq
}

// TradingEquity is the equity the sizing model may see, capped by the
// configured trade balance cap.
func (b *Book) TradingEquity() float64 {
	eq := b.Equity()
	if b.engine.TradeBalanceCap > 0 && eq > b.engine.TradeBalanceCap {
		return b.engine.TradeBalanceCap
	}
	return eq
}

// Mode returns the current sleeve mode.
func (b *Book) Mode() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// Sleeves returns the current aggressive and safe sleeve targets.
func (b *Book) Sleeves() (aggr, safe float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aggr, b.safe
}

// Budget is the capital base for sizing one trade: the sleeve target in
// hybrid mode, the whole (capped) equity in nuclear mode.
func (b *Book) Budget(safeSleeve bool) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mode == ModeHybrid {
		if safeSleeve {
			return b.safe
		}
		return b.aggr
	}
	eq := b.equityLocked()
	if b.engine.TradeBalanceCap > 0 && eq > b.engine.TradeBalanceCap {
		eq = b.engine.TradeBalanceCap
	}
	return eq
}

// RiskPct is the per-trade risk fraction for a sleeve.
func (b *Book) RiskPct(safeSleeve bool) float64 {
	if safeSleeve {
		return b.risk.SafePct
	}
	return b.risk.NuclearPct
}

// Rebalance recomputes the sleeve split from current equity. Below the
// split threshold the whole book is aggressive; above it the aggressive
// sleeve gets max(total x aggressive_pct, min_aggressive). Small drift is
// left alone.
func (b *Book) Rebalance(now time.Time) {
	b.mu.Lock()

	total := b.equityLocked()
	if b.engine.TradeBalanceCap > 0 && total > b.engine.TradeBalanceCap {
		total = b.engine.TradeBalanceCap
	}

	var mode string
	var aggr, safe float64
	if total < b.risk.SplitThreshold {
		mode, aggr, safe = ModeNuclear, total, 0
	} else {
		mode = ModeHybrid
		aggr = total * b.risk.AggressivePct
		if aggr < b.risk.MinAggressive {
			aggr = b.risk.MinAggressive
		}
		safe = total - aggr
	}

	if mode == b.mode && b.aggr > 0 && driftPct(b.aggr, aggr) < rebalanceDriftPct {
		b.mu.Unlock()
		return
	}

	reason := fmt.Sprintf("rebalance %s->%s", b.mode, mode)
	b.mode, b.aggr, b.safe = mode, aggr, safe
	b.mu.Unlock()

	b.log.Info().Str("mode", mode).Float64("aggr", aggr).Float64("safe", safe).
		Msg("sleeves rebalanced")

	if b.st != nil {
		err := b.st.SavePortfolioState(store.PortfolioState{
			Time: now, Total: total, Mode: mode, Aggr: aggr, Safe: safe, Reason: reason,
		})
		if err != nil {
			b.log.Error().Err(err).Msg("persist portfolio state failed")
		}
	}
}

func driftPct(current, target float64) float64 {
	if target == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	d := (current - target) / target * 100
	if d < 0 {
		return -d
	}
	return d
}
