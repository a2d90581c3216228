package ledger

import (
	"context"
	"time"

	"github.com/UnderhillForge/PiTrader/metrics"
	"github.com/UnderhillForge/PiTrader/store"
)

// closeEventType maps a close reason onto its dedicated event, if any.
// Every close also emits close_settled.
func closeEventType(reason string) string {
	switch reason {
	case "stop":
		return "stop_hit"
	case "take_profit":
		return "tp_hit"
	case "pump_timer", "pump_timer_recovery":
		return "timer_exit"
	}
	return ""
}

// CloseTrade settles the whole remaining position. Closing an already
// settled or unknown trade is a no-op.
func (l *Ledger) CloseTrade(ctx context.Context, tradeID, reason string) error {
	l.mu.Lock()
	t, ok := l.trades[tradeID]
	if !ok || t.Status != StatusOpen {
		l.mu.Unlock()
		return nil
	}
	// Claim the trade so a racing timer or monitor pass cannot settle it
	// twice.
	t.Status = StatusClosed
	t.CloseReason = reason
	l.cancelTimerLocked(tradeID)
	remaining := t.RemainingSize
	asset := t.Asset
	side := t.Side
	leverage := t.Leverage
	l.mu.Unlock()

	refPrice := t.Entry
	var atr float64
	if point, ok := l.cache.Price(asset); ok && point.Price > 0 {
		refPrice = point.Price
	}
	if bundle, ok := l.cache.ATR(asset); ok && bundle.Has6h() {
		atr = bundle.SixHour
	}

	if remaining > remainingSizeEpsilon {
		res := l.router.Submit(ctx, asset, side.Opposite(), remaining, refPrice, leverage)
		metrics.Orders.WithLabelValues(res.Path).Inc()
		if res.Filled {
			l.healthM.Success()
		} else {
			l.healthM.Failure("order_close")
			l.log.Warn().Str("trade_id", tradeID).Str("reason", res.Reason).
				Msg("close order submission failed, settling sim position anyway")
		}
	}

	exit := l.simFillPrice(refPrice, atr, t.Long(), false)
	now := time.Now().UTC()

	l.mu.Lock()
	if remaining > remainingSizeEpsilon {
		var gross float64
		if t.Long() {
			gross = (exit - t.Entry) * remaining
		} else {
			gross = (t.Entry - exit) * remaining
		}
		t.RealizedGross += gross
		t.RealizedFees += remaining * exit * l.cfg.Sim.TakerFeeRate

		if hours := now.Sub(t.FundingLastTS).Hours(); hours > 0 {
			t.RealizedFunding += remaining * exit * l.cfg.Sim.FundingRatePer8h * hours / 8
			t.FundingLastTS = now
		}
		t.RemainingSize = 0
	}
	t.RealizedNet = t.RealizedGross - t.RealizedFees - t.RealizedFunding
	t.ExitPrice = exit
	t.ClosedAt = &now
	settled := *t
	delete(l.trades, tradeID)
	open := len(l.trades)
	l.mu.Unlock()

	l.book.AddRealized(settled.RealizedNet - settled.Credited)

	if l.st != nil {
		err := l.st.SaveTrade(store.TradeRow{
			ID:          settled.ID,
			Time:        now,
			Asset:       settled.Asset,
			Side:        string(settled.Side),
			Size:        settled.InitialSize,
			Entry:       settled.Entry,
			Exit:        exit,
			PnL:         settled.RealizedNet,
			PnLGross:    settled.RealizedGross,
			FeeCost:     settled.RealizedFees,
			FundingCost: settled.RealizedFunding,
			Reason:      reason,
		})
		if err != nil {
			l.log.Error().Err(err).Str("trade_id", tradeID).Msg("journal trade failed")
		}
		if err := l.st.DeleteLiveTrade(tradeID); err != nil {
			l.log.Error().Err(err).Str("trade_id", tradeID).Msg("delete live trade failed")
		}
	}

	if evt := closeEventType(reason); evt != "" {
		l.saveEvent(evt, settled.DecisionID, settled.ID, settled.Asset, map[string]any{
			"exit": exit, "net": settled.RealizedNet,
		})
	}
	l.saveEvent("close_settled", settled.DecisionID, settled.ID, settled.Asset, map[string]any{
		"reason": reason, "exit": exit, "gross": settled.RealizedGross,
		"fees": settled.RealizedFees, "funding": settled.RealizedFunding,
		"net": settled.RealizedNet,
	})

	metrics.TradesClosed.WithLabelValues(reason).Inc()
	metrics.OpenTrades.Set(float64(open))
	metrics.Equity.Set(l.book.Equity())
	metrics.RealizedPnL.Set(l.book.Realized())

	l.log.Info().Str("trade_id", tradeID).Str("reason", reason).
		Float64("exit", exit).Float64("net", settled.RealizedNet).Msg("trade closed")
	return nil
}

// closePartial settles size base units of an open trade and leaves the rest
// running.
func (l *Ledger) closePartial(ctx context.Context, tradeID string, size float64, reason string) {
	l.mu.Lock()
	t, ok := l.trades[tradeID]
	if !ok || t.Status != StatusOpen || size <= remainingSizeEpsilon {
		l.mu.Unlock()
		return
	}
	if size > t.RemainingSize {
		size = t.RemainingSize
	}
	asset := t.Asset
	side := t.Side
	leverage := t.Leverage
	l.mu.Unlock()

	refPrice := t.Entry
	var atr float64
	if point, ok := l.cache.Price(asset); ok && point.Price > 0 {
		refPrice = point.Price
	}
	if bundle, ok := l.cache.ATR(asset); ok && bundle.Has6h() {
		atr = bundle.SixHour
	}

	res := l.router.Submit(ctx, asset, side.Opposite(), size, refPrice, leverage)
	metrics.Orders.WithLabelValues(res.Path).Inc()
	if res.Filled {
		l.healthM.Success()
	} else {
		l.healthM.Failure("order_close")
	}

	exit := l.simFillPrice(refPrice, atr, t.Long(), false)

	l.mu.Lock()
	// A timer or manual close may have settled the trade while the router
	// call was in flight; the full close already credited everything.
	if t, ok = l.trades[tradeID]; !ok || t.Status != StatusOpen {
		l.mu.Unlock()
		return
	}
	if size > t.RemainingSize {
		size = t.RemainingSize
	}
	var gross float64
	if t.Long() {
		gross = (exit - t.Entry) * size
	} else {
		gross = (t.Entry - exit) * size
	}
	fee := size * exit * l.cfg.Sim.TakerFeeRate
	t.RealizedGross += gross
	t.RealizedFees += fee
	t.RemainingSize -= size
	t.RealizedNet = t.RealizedGross - t.RealizedFees - t.RealizedFunding
	deltaNet := gross - fee
	t.Credited += deltaNet
	snapshot := *t
	l.mu.Unlock()

	l.book.AddRealized(deltaNet)
	l.persistLive(&snapshot)
	l.saveEvent("partial_close", snapshot.DecisionID, snapshot.ID, snapshot.Asset, map[string]any{
		"reason": reason, "size": size, "exit": exit, "net_delta": deltaNet,
		"remaining": snapshot.RemainingSize,
	})
	metrics.Equity.Set(l.book.Equity())
	metrics.RealizedPnL.Set(l.book.Realized())

	l.log.Info().Str("trade_id", tradeID).Str("reason", reason).
		Float64("size", size).Float64("remaining", snapshot.RemainingSize).
		Msg("partial close settled")
}

// CloseAsset closes every open trade on one asset. Returns how many were
// settled.
func (l *Ledger) CloseAsset(ctx context.Context, asset, reason string) int {
	var ids []string
	l.mu.Lock()
	for tid, t := range l.trades {
		if t.Asset == asset && t.Status == StatusOpen {
			ids = append(ids, tid)
		}
	}
	l.mu.Unlock()

	for _, tid := range ids {
		if err := l.CloseTrade(ctx, tid, reason); err != nil {
			l.log.Error().Err(err).Str("trade_id", tid).Msg("close failed")
		}
	}
	return len(ids)
}

// ForceCloseAll closes every open trade, used by the safety watchdogs.
func (l *Ledger) ForceCloseAll(ctx context.Context, reason string) int {
	var ids []string
	l.mu.Lock()
	for tid := range l.trades {
		ids = append(ids, tid)
	}
	l.mu.Unlock()

	for _, tid := range ids {
		if err := l.CloseTrade(ctx, tid, reason); err != nil {
			l.log.Error().Err(err).Str("trade_id", tid).Msg("force close failed")
		}
	}
	l.log.Warn().Int("count", len(ids)).Str("reason", reason).Msg("force closed all positions")
	return len(ids)
}
