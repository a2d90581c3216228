package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Recover reloads open positions from the live trade store after a restart
// and re-arms their pump timers. Timers whose deadline already passed close
// the trade immediately. Returns how many trades were restored.
func (l *Ledger) Recover(ctx context.Context) (int, error) {
	if l.st == nil {
		return 0, nil
	}
	rows, err := l.st.LoadLiveTrades()
	if err != nil {
		return 0, fmt.Errorf("load live trades: %w", err)
	}

	now := time.Now().UTC()
	var restored int
	var expired []string

	for _, row := range rows {
		var t Trade
		if err := json.Unmarshal(row.Payload, &t); err != nil {
			l.log.Error().Err(err).Str("trade_id", row.ID).Msg("corrupt live trade payload, dropping")
			if err := l.st.DeleteLiveTrade(row.ID); err != nil {
				l.log.Error().Err(err).Str("trade_id", row.ID).Msg("delete corrupt live trade failed")
			}
			continue
		}
		if t.Status != StatusOpen {
			if err := l.st.DeleteLiveTrade(row.ID); err != nil {
				l.log.Error().Err(err).Str("trade_id", row.ID).Msg("delete settled live trade failed")
			}
			continue
		}

		l.mu.Lock()
		l.trades[t.ID] = &t
		l.mu.Unlock()
		restored++

		if t.TimerDeadline != nil {
			if !now.Before(*t.TimerDeadline) {
				expired = append(expired, t.ID)
			} else {
				l.armTimer(t.ID, t.TimerDeadline.Sub(now), "pump_timer")
			}
		}
		l.log.Info().Str("trade_id", t.ID).Str("asset", t.Asset).
			Float64("remaining", t.RemainingSize).Msg("live trade restored")
	}

	for _, tid := range expired {
		if err := l.CloseTrade(ctx, tid, "pump_timer_recovery"); err != nil {
			l.log.Error().Err(err).Str("trade_id", tid).Msg("recovery close failed")
		}
	}

	return restored, nil
}
