package ledger

import (
	"context"
	"time"

	"github.com/UnderhillForge/PiTrader/broker"
	"github.com/UnderhillForge/PiTrader/metrics"
)

// tradeAction is what one monitor pass decided to do with a trade. A sharp
// move can take both partial levels in the same pass.
type tradeAction struct {
	partials    []partialOrder
	pyramidAdd  float64
	closeReason string
}

type partialOrder struct {
	size   float64
	reason string
}

// MonitorTick runs one pass over every open trade: funding accrual, the
// trailing stop, partial take-profits, pyramid adds and exit checks. A
// failure on one trade never stops the sweep.
func (l *Ledger) MonitorTick(ctx context.Context, now time.Time) {
	l.mu.Lock()
	ids := make([]string, 0, len(l.trades))
	for tid := range l.trades {
		ids = append(ids, tid)
	}
	l.mu.Unlock()

	for _, tid := range ids {
		l.monitorTrade(ctx, tid, now)
	}
	metrics.Equity.Set(l.book.Equity())
}

func (l *Ledger) monitorTrade(ctx context.Context, tradeID string, now time.Time) {
	l.mu.Lock()
	t0, exists := l.trades[tradeID]
	if !exists || t0.Status != StatusOpen {
		l.mu.Unlock()
		return
	}
	asset := t0.Asset
	l.mu.Unlock()

	point, found := l.cache.Price(asset)
	if !found || point.Price <= 0 {
		l.log.Debug().Str("trade_id", tradeID).Str("asset", asset).
			Msg("no price for open trade, skipping")
		return
	}
	price := point.Price

	l.mu.Lock()
	t, exists := l.trades[tradeID]
	if !exists || t.Status != StatusOpen {
		l.mu.Unlock()
		return
	}

	l.accrueFundingLocked(t, price, now)
	l.updateTrailingLocked(t, price)
	action := l.planActionsLocked(t, price)
	l.mu.Unlock()

	for _, p := range action.partials {
		l.closePartial(ctx, tradeID, p.size, p.reason)
	}
	if action.pyramidAdd > 0 {
		l.pyramidAdd(ctx, tradeID, action.pyramidAdd, price)
	}
	if action.closeReason != "" {
		if err := l.CloseTrade(ctx, tradeID, action.closeReason); err != nil {
			l.log.Error().Err(err).Str("trade_id", tradeID).Msg("monitor close failed")
		}
		return
	}

	l.mu.Lock()
	if t, ok := l.trades[tradeID]; ok && t.Status == StatusOpen {
		snapshot := *t
		l.mu.Unlock()
		l.persistLive(&snapshot)
		return
	}
	l.mu.Unlock()
}

// accrueFundingLocked charges the perp funding drag since the last accrual.
func (l *Ledger) accrueFundingLocked(t *Trade, price float64, now time.Time) {
	hours := now.Sub(t.FundingLastTS).Hours()
	if hours <= 0 {
		return
	}
	drag := t.RemainingSize * price * l.cfg.Sim.FundingRatePer8h * hours / 8
	t.RealizedFunding += drag
	t.RealizedNet = t.RealizedGross - t.RealizedFees - t.RealizedFunding
	t.FundingLastTS = now
}

// updateTrailingLocked tracks the best price and, once the move clears the
// activation threshold, ratchets the stop behind it. The stop only ever
// tightens.
func (l *Ledger) updateTrailingLocked(t *Trade, price float64) {
	if t.Long() {
		if price > t.BestPrice {
			t.BestPrice = price
		}
		if !t.TrailActive {
			movePct := (t.BestPrice - t.Entry) / t.Entry * 100
			if movePct >= t.TrailActivationPct {
				t.TrailActive = true
			}
		}
		if t.TrailActive {
			if cand := t.BestPrice * (1 - t.TrailPct/100); cand > t.Stop {
				t.Stop = cand
			}
		}
		return
	}

	if t.BestPrice == 0 || price < t.BestPrice {
		t.BestPrice = price
	}
	if !t.TrailActive {
		movePct := (t.Entry - t.BestPrice) / t.Entry * 100
		if movePct >= t.TrailActivationPct {
			t.TrailActive = true
		}
	}
	if t.TrailActive {
		if cand := t.BestPrice * (1 + t.TrailPct/100); cand < t.Stop {
			t.Stop = cand
		}
	}
}

// planActionsLocked decides partials, pyramid adds and exits for one trade
// at the current price.
func (l *Ledger) planActionsLocked(t *Trade, price float64) tradeAction {
	var action tradeAction

	if rr, ok := t.RRNow(price); ok {
		if !t.Partial15Done && rr >= partial15RR {
			t.Partial15Done = true
			action.partials = append(action.partials,
				partialOrder{size: t.InitialSize * partial15Fraction, reason: "partial_take_15"})
		}
		if !t.Partial30Done && rr >= partial30RR {
			t.Partial30Done = true
			action.partials = append(action.partials,
				partialOrder{size: t.InitialSize * partial30Fraction, reason: "partial_take_30"})
		}

		pcfg := l.cfg.Pyramid
		if pcfg.Enabled && len(action.partials) == 0 &&
			t.AddCount < pcfg.MaxAdds &&
			t.Conviction >= pcfg.MinConviction &&
			rr >= pcfg.RRTrigger+0.5*float64(t.AddCount) {
			add := t.PyramidBaseSize * pcfg.AddFraction
			exposure := (t.RemainingSize + add) * price
			if exposure <= l.book.Equity()*pcfg.MaxExposurePct {
				action.pyramidAdd = add
			}
		}
	}

	var partialTotal float64
	for _, p := range action.partials {
		partialTotal += p.size
	}

	stopHit := (t.Long() && price <= t.Stop) || (!t.Long() && price >= t.Stop)
	tpHit := (t.Long() && price >= t.TakeProfit) || (!t.Long() && price <= t.TakeProfit)
	switch {
	case stopHit:
		action.closeReason = "stop"
	case tpHit:
		action.closeReason = "take_profit"
	case t.RemainingSize-partialTotal <= remainingSizeEpsilon:
		action.closeReason = "fully_partialed"
	}
	return action
}

// pyramidAdd scales into a winning trade. The recorded entry and the risk
// distance are left untouched, so later RR triggers keep their original
// geometry.
func (l *Ledger) pyramidAdd(ctx context.Context, tradeID string, add, price float64) {
	l.mu.Lock()
	t, ok := l.trades[tradeID]
	if !ok || t.Status != StatusOpen {
		l.mu.Unlock()
		return
	}
	asset := t.Asset
	side := t.Side
	leverage := t.Leverage
	l.mu.Unlock()

	res := l.router.Submit(ctx, asset, side, add, price, leverage)
	metrics.Orders.WithLabelValues(res.Path).Inc()
	if !res.Filled {
		l.healthM.Failure("order_open")
		l.log.Warn().Str("trade_id", tradeID).Str("reason", res.Reason).
			Msg("pyramid add submission failed")
		return
	}
	l.healthM.Success()

	var atr float64
	if bundle, ok := l.cache.ATR(asset); ok && bundle.Has6h() {
		atr = bundle.SixHour
	}
	fill := l.simFillPrice(price, atr, side == broker.Buy, true)

	l.mu.Lock()
	if t, ok = l.trades[tradeID]; !ok || t.Status != StatusOpen {
		l.mu.Unlock()
		return
	}
	t.RemainingSize += add
	t.AddCount++
	snapshot := *t
	l.mu.Unlock()

	l.persistLive(&snapshot)
	l.saveEvent("pyramid_add", snapshot.DecisionID, snapshot.ID, snapshot.Asset, map[string]any{
		"add": add, "fill": fill,
		"remaining": snapshot.RemainingSize, "add_count": snapshot.AddCount,
	})
	l.log.Info().Str("trade_id", tradeID).Float64("add", add).
		Int("add_count", snapshot.AddCount).Msg("pyramid add filled")
}
