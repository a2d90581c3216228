package ledger

import (
	"context"
	"time"
)

// armTimer schedules a forced close for a pump trade. Re-arming replaces
// any previous timer for the same trade.
func (l *Ledger) armTimer(tradeID string, in time.Duration, reason string) {
	if in < 0 {
		in = 0
	}
	l.mu.Lock()
	if old, ok := l.timers[tradeID]; ok {
		old.Stop()
	}
	l.timers[tradeID] = time.AfterFunc(in, func() {
		if err := l.CloseTrade(context.Background(), tradeID, reason); err != nil {
			l.log.Error().Err(err).Str("trade_id", tradeID).Msg("timer close failed")
		}
	})
	l.mu.Unlock()
}

// cancelTimerLocked stops and removes a trade's timer. Callers hold l.mu.
func (l *Ledger) cancelTimerLocked(tradeID string) {
	if t, ok := l.timers[tradeID]; ok {
		t.Stop()
		delete(l.timers, tradeID)
	}
}
