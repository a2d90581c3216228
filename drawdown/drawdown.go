// Package drawdown is the equity circuit breaker: it tracks equity history,
// measures daily, weekly and all-time-high drawdowns, and latches a trading
// pause when a limit is crossed. The pause never clears on its own.
package drawdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnderhillForge/PiTrader/config"
	"github.com/UnderhillForge/PiTrader/store"
)

// In-memory history bounds. The store keeps the full series.
const (
	historyMaxAge    = 8 * 24 * time.Hour
	historyMaxPoints = 5000
)

// Actions is what the guard does to the engine on a breach.
type Actions interface {
	ForceCloseAll(ctx context.Context, reason string) int
	Park(reason string) error
}

// Status is the outcome of one drawdown evaluation.
type Status struct {
	Breached  bool
	Reason    string // daily, weekly or ath
	DailyPct  float64
	WeeklyPct float64
	ATHPct    float64
}

// Guard watches equity and latches a pause when a drawdown limit is hit.
type Guard struct {
	cfg config.DrawdownConfig
	st  store.Store
	log zerolog.Logger

	mu          sync.Mutex
	history     []store.EquityPoint
	ath         float64
	dailyDate   string
	dailyPeak   float64
	paused      bool
	pauseReason string
	enforced    bool
}

// NewGuard loads persisted equity history so daily and weekly windows
// survive restarts.
func NewGuard(cfg config.DrawdownConfig, st store.Store, log zerolog.Logger) (*Guard, error) {
	g := &Guard{
		cfg: cfg,
		st:  st,
		log: log.With().Str("component", "drawdown").Logger(),
	}
	if st != nil {
		points, err := st.LoadEquityHistory(historyMaxPoints)
		if err != nil {
			return nil, fmt.Errorf("load equity history: %w", err)
		}
		g.history = points
		for _, p := range points {
			if p.Equity > g.ath {
				g.ath = p.Equity
			}
			g.observeDailyLocked(p.Equity, p.Time)
		}
	}
	return g, nil
}

// Record appends one equity observation, persists it and prunes the
// in-memory window.
func (g *Guard) Record(equity float64, at time.Time) {
	g.mu.Lock()
	g.history = append(g.history, store.EquityPoint{Time: at, Equity: equity})
	if equity > g.ath {
		g.ath = equity
	}
	g.observeDailyLocked(equity, at)
	g.pruneLocked(at)
	g.mu.Unlock()

	if g.st != nil {
		if err := g.st.SaveEquityPoint(store.EquityPoint{Time: at, Equity: equity}); err != nil {
			g.log.Error().Err(err).Msg("persist equity point failed")
		}
	}
}

func (g *Guard) pruneLocked(now time.Time) {
	cutoff := now.Add(-historyMaxAge)
	i := 0
	for i < len(g.history) && g.history[i].Time.Before(cutoff) {
		i++
	}
	g.history = g.history[i:]
	if len(g.history) > historyMaxPoints {
		g.history = g.history[len(g.history)-historyMaxPoints:]
	}
}

// Evaluate records the current equity and checks every drawdown window.
// The first limit crossed, checked daily then weekly then all-time-high,
// latches the pause.
func (g *Guard) Evaluate(equity float64, now time.Time) Status {
	g.Record(equity, now)

	g.mu.Lock()
	defer g.mu.Unlock()

	st := Status{
		DailyPct:  g.dailyDrawdownLocked(equity, now),
		WeeklyPct: g.drawdownSinceLocked(now.Add(-7*24*time.Hour), equity),
	}
	if g.ath > 0 {
		st.ATHPct = (g.ath - equity) / g.ath * 100
	}

	switch {
	case st.DailyPct >= g.cfg.DailyLimitPct:
		st.Breached, st.Reason = true, "daily"
	case st.WeeklyPct >= g.cfg.WeeklyLimitPct:
		st.Breached, st.Reason = true, "weekly"
	case st.ATHPct >= g.cfg.ATHLimitPct:
		st.Breached, st.Reason = true, "ath"
	}

	if st.Breached && !g.paused {
		g.paused = true
		g.pauseReason = fmt.Sprintf("%s: daily=%.2f%% weekly=%.2f%% ath=%.2f%%",
			st.Reason, st.DailyPct, st.WeeklyPct, st.ATHPct)
		g.log.Error().Str("reason", g.pauseReason).Msg("drawdown limit breached, trading paused")
	}
	return st
}

// observeDailyLocked folds one observation into the calendar-day peak.
// A date change resets the peak, so yesterday's high never drives today's
// daily drawdown.
func (g *Guard) observeDailyLocked(equity float64, at time.Time) {
	day := at.Format("2006-01-02")
	if day != g.dailyDate {
		g.dailyDate = day
		g.dailyPeak = equity
		return
	}
	if equity > g.dailyPeak {
		g.dailyPeak = equity
	}
}

// dailyDrawdownLocked measures the fall from today's peak.
func (g *Guard) dailyDrawdownLocked(equity float64, now time.Time) float64 {
	if now.Format("2006-01-02") != g.dailyDate || g.dailyPeak <= 0 {
		return 0
	}
	dd := (g.dailyPeak - equity) / g.dailyPeak * 100
	if dd < 0 {
		return 0
	}
	return dd
}

// drawdownSinceLocked measures the fall from the window's equity peak.
func (g *Guard) drawdownSinceLocked(since time.Time, equity float64) float64 {
	var peak float64
	for _, p := range g.history {
		if p.Time.Before(since) {
			continue
		}
		if p.Equity > peak {
			peak = p.Equity
		}
	}
	if peak <= 0 {
		return 0
	}
	dd := (peak - equity) / peak * 100
	if dd < 0 {
		return 0
	}
	return dd
}

// Paused reports the latched pause. It only clears through operator action
// on a fresh process with reset state.
func (g *Guard) Paused() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused, g.pauseReason
}

// EntriesBlocked mirrors Paused with a gate-style reason.
func (g *Guard) EntriesBlocked() (bool, string) {
	paused, reason := g.Paused()
	if paused {
		return true, "drawdown_pause: " + reason
	}
	return false, ""
}

// EnforcePause runs the breach side effects once: flatten open positions
// and park, as configured.
func (g *Guard) EnforcePause(ctx context.Context, actions Actions, reason string) {
	g.mu.Lock()
	due := g.paused && !g.enforced
	if due {
		g.enforced = true
	}
	g.mu.Unlock()

	if !due || actions == nil {
		return
	}

	if g.cfg.AutoFlatten {
		closed := actions.ForceCloseAll(ctx, "drawdown_"+reason)
		g.log.Warn().Int("closed", closed).Msg("drawdown flatten complete")
	}
	if g.cfg.AutoPark {
		if err := actions.Park("drawdown_" + reason); err != nil {
			g.log.Error().Err(err).Msg("park failed")
		}
	}
}
