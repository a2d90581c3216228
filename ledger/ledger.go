// Package ledger is the heart of the engine: it executes decisions through
// the gate chain, owns every open trade, runs the monitor loop over them
// and settles closes into the journal.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnderhillForge/PiTrader/broker"
	"github.com/UnderhillForge/PiTrader/config"
	"github.com/UnderhillForge/PiTrader/drawdown"
	"github.com/UnderhillForge/PiTrader/exec"
	"github.com/UnderhillForge/PiTrader/gate"
	"github.com/UnderhillForge/PiTrader/health"
	"github.com/UnderhillForge/PiTrader/market"
	"github.com/UnderhillForge/PiTrader/metrics"
	"github.com/UnderhillForge/PiTrader/pkg/id"
	"github.com/UnderhillForge/PiTrader/portfolio"
	"github.com/UnderhillForge/PiTrader/regime"
	"github.com/UnderhillForge/PiTrader/risk"
	"github.com/UnderhillForge/PiTrader/store"
)

// Default trailing stop parameters applied to every new trade.
const (
	defaultTrailActivationPct = 10.0
	defaultTrailPct           = 4.0
)

// Pump timer hold bounds in minutes.
const (
	timerHoldMinMinutes = 5.0
	timerHoldMaxMinutes = 90.0
)

// liveEquityLeverageCap applies when running live with a dust account.
const (
	liveEquityFloor      = 100.0
	liveEquityLeverCap   = 3
	minLeverage          = 1
	partial15RR          = 1.5
	partial15Fraction    = 0.50
	partial30RR          = 3.0
	partial30Fraction    = 0.30
	remainingSizeEpsilon = 1e-9
)

// OrderRouter is the slice of the execution router the ledger uses.
type OrderRouter interface {
	Submit(ctx context.Context, asset string, side broker.Side, size, refPrice float64, leverage int) exec.Result
}

// Ledger owns the open trade map. All mutation happens under one mutex;
// the router and store calls are made outside it.
type Ledger struct {
	cfg     *config.Config
	cache   *market.Cache
	router  OrderRouter
	st      store.Store
	book    *portfolio.Book
	healthM *health.Monitor
	ddGuard *drawdown.Guard
	classif *regime.Classifier
	log     zerolog.Logger

	// Parked, when set, reports an operator or watchdog park. Parked
	// engines refuse entries but still manage exits.
	Parked func() (bool, string)

	startedAt time.Time

	mu     sync.Mutex
	trades map[string]*Trade
	timers map[string]*time.Timer
}

func New(cfg *config.Config, cache *market.Cache, router OrderRouter, st store.Store,
	book *portfolio.Book, healthM *health.Monitor, ddGuard *drawdown.Guard,
	classif *regime.Classifier, log zerolog.Logger) *Ledger {
	return &Ledger{
		cfg:       cfg,
		cache:     cache,
		router:    router,
		st:        st,
		book:      book,
		healthM:   healthM,
		ddGuard:   ddGuard,
		classif:   classif,
		log:       log.With().Str("component", "ledger").Logger(),
		startedAt: time.Now().UTC(),
		trades:    make(map[string]*Trade),
		timers:    make(map[string]*time.Timer),
	}
}

func validAsset(asset string) bool {
	return strings.HasSuffix(asset, "-PERP-INTX") ||
		strings.HasSuffix(asset, "-USD") ||
		strings.HasSuffix(asset, "-USDC")
}

func isPerp(asset string) bool { return strings.HasSuffix(asset, "-PERP-INTX") }

// Execute runs one decision through the gate chain and, when everything
// passes, opens the position.
func (l *Ledger) Execute(ctx context.Context, d Decision) (Result, error) {
	if d.ID == "" {
		d.ID = id.New()
	}
	log := l.log.With().Str("decision_id", d.ID).Str("asset", d.Asset).
		Str("action", d.Action).Logger()

	switch d.Action {
	case ActionBuy, ActionSell, ActionClose:
	case ActionHold:
		metrics.Decisions.WithLabelValues("held").Inc()
		log.Debug().Msg("hold decision, nothing to do")
		return Result{Outcome: OutcomeHeld}, nil
	default:
		metrics.Decisions.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidAction, d.Action)
	}
	if !validAsset(d.Asset) {
		metrics.Decisions.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidAsset, d.Asset)
	}

	if d.Action == ActionClose {
		closed := l.CloseAsset(ctx, d.Asset, "manual_close")
		metrics.Decisions.WithLabelValues("closed").Inc()
		return Result{Outcome: OutcomeClosed, Reason: fmt.Sprintf("closed %d trades", closed)}, nil
	}

	if res, ok := l.entryGates(d, log); !ok {
		metrics.Decisions.WithLabelValues("blocked").Inc()
		metrics.Blocks.WithLabelValues(res.Gate).Inc()
		l.saveEvent("entry_blocked", d.ID, "", d.Asset, map[string]any{
			"gate": res.Gate, "reason": res.Reason,
		})
		log.Info().Str("gate", res.Gate).Str("reason", res.Reason).Msg("entry blocked")
		return res, nil
	}

	return l.open(ctx, d, log)
}

// entryGates runs every pre-sizing gate in order. The first failing gate
// wins.
func (l *Ledger) entryGates(d Decision, log zerolog.Logger) (Result, bool) {
	if l.Parked != nil {
		if parked, reason := l.Parked(); parked {
			return blocked("parked", reason), false
		}
	}
	if blockedNow, reason := l.healthM.EntriesBlocked(); blockedNow {
		return blocked("health", reason), false
	}
	if blockedNow, reason := l.ddGuard.EntriesBlocked(); blockedNow {
		return blocked("drawdown", reason), false
	}

	warmup := time.Duration(l.cfg.Engine.ReadinessHours * float64(time.Hour))
	if since := time.Since(l.startedAt); since < warmup {
		return blocked("readiness", fmt.Sprintf("warming_up %.1fh", (warmup - since).Hours())), false
	}

	if len(l.cache.Basket()) > 0 {
		if report := gate.CheckDataQuality(l.cache, l.cfg.DataQ, time.Now().UTC()); !report.OK {
			return blocked("data_quality", report.Reason), false
		}
	}

	if d.Sleeve == SleeveSafe {
		if !l.cfg.IsSafeAsset(d.Asset) {
			return blocked("sleeve", "safe_sleeve_asset"), false
		}
		if d.PumpScore >= risk.PumpScoreTight {
			return blocked("sleeve", "pump_in_safe_sleeve"), false
		}
	}

	if d.Action == ActionSell && !isPerp(d.Asset) {
		return blocked("venue", "short_spot_unsupported"), false
	}

	return Result{}, true
}

// open sizes, gates and submits a new position.
func (l *Ledger) open(ctx context.Context, d Decision, log zerolog.Logger) (Result, error) {
	profile := l.classif.Profile()
	leverage := l.sanitizeLeverage(d.Leverage, profile)
	safe := d.Sleeve == SleeveSafe
	long := d.Action == ActionBuy
	side := broker.Buy
	if !long {
		side = broker.Sell
	}

	point, ok := l.cache.Price(d.Asset)
	if !ok || point.Price <= 0 {
		metrics.Decisions.WithLabelValues("blocked").Inc()
		metrics.Blocks.WithLabelValues("market_data").Inc()
		return blocked("market_data", "no_price"), nil
	}
	price := point.Price

	bundle, _ := l.cache.ATR(d.Asset)
	atr := bundle.SixHour
	if d.PumpScore >= risk.PumpScoreTight && bundle.Has1h() {
		atr = bundle.OneHour
	}
	if atr <= 0 {
		metrics.Decisions.WithLabelValues("blocked").Inc()
		metrics.Blocks.WithLabelValues("market_data").Inc()
		return blocked("market_data", "atr_unavailable"), nil
	}

	stop, takeProfit, ok := risk.DeriveStopTakeProfit(long, price, atr, d.PumpScore)
	if !ok {
		metrics.Decisions.WithLabelValues("blocked").Inc()
		metrics.Blocks.WithLabelValues("market_data").Inc()
		return blocked("market_data", "levels_unavailable"), nil
	}
	// Explicit levels on the decision win over the ATR derivation.
	if d.Stop > 0 {
		stop = d.Stop
	}
	if d.TakeProfit > 0 {
		takeProfit = d.TakeProfit
	}
	rr := risk.RR(long, price, stop, takeProfit)

	if report := gate.CheckEntry(l.cfg.Entry, d.PumpScore, bundle, rr, safe, profile.MinRRAdd); !report.OK {
		metrics.Decisions.WithLabelValues("blocked").Inc()
		metrics.Blocks.WithLabelValues("entry_quality").Inc()
		l.saveEvent("entry_blocked", d.ID, "", d.Asset, map[string]any{
			"gate": "entry_quality", "reason": report.Reason, "rr": rr,
		})
		return blocked("entry_quality", report.Reason), nil
	}

	size := l.sizePosition(d, price, profile.RiskMult, safe)
	if size <= 0 {
		metrics.Decisions.WithLabelValues("blocked").Inc()
		metrics.Blocks.WithLabelValues("sizing").Inc()
		return blocked("sizing", "size_zero"), nil
	}
	notional := size * price

	conviction := d.Conviction
	liq, _ := l.cache.Liquidity(d.Asset)
	micro, _ := l.cache.Micro(d.Asset)
	microReport := gate.CheckMicro(liq, micro, side, notional, l.cfg.Execution.GuardMaxSpreadPct)
	if !microReport.OK {
		metrics.Decisions.WithLabelValues("blocked").Inc()
		metrics.Blocks.WithLabelValues("micro").Inc()
		return blocked("micro", microReport.Reason), nil
	}
	conviction -= microReport.Penalty

	l.saveEvent("decision", d.ID, "", d.Asset, map[string]any{
		"action": d.Action, "sleeve": d.Sleeve, "size": size, "leverage": leverage,
		"rr": rr, "conviction": conviction, "regime": string(profile.Regime),
	})

	res := l.router.Submit(ctx, d.Asset, side, size, price, leverage)
	metrics.Orders.WithLabelValues(res.Path).Inc()
	if !res.Filled {
		l.healthM.Failure("order_open")
		metrics.Decisions.WithLabelValues("error").Inc()
		log.Warn().Str("path", res.Path).Str("reason", res.Reason).Msg("order submission failed")
		return Result{Outcome: OutcomeFailed, Gate: "execution", Reason: res.Reason}, nil
	}
	l.healthM.Success()

	trailActivation := defaultTrailActivationPct
	if d.TrailActPct > 0 {
		trailActivation = d.TrailActPct
	}
	trailing := defaultTrailPct
	if d.TrailPct > 0 {
		trailing = d.TrailPct
	}

	entry := l.simFillPrice(price, atr, long, true)
	now := time.Now().UTC()
	openFee := size * entry * l.cfg.Sim.TakerFeeRate
	t := &Trade{
		ID:                 id.New(),
		DecisionID:         d.ID,
		Asset:              d.Asset,
		Side:               side,
		Status:             StatusOpen,
		Sleeve:             d.Sleeve,
		Conviction:         conviction,
		PumpScore:          d.PumpScore,
		Leverage:           leverage,
		Entry:              entry,
		InitialStop:        stop,
		Stop:               stop,
		TakeProfit:         takeProfit,
		InitialSize:        size,
		RemainingSize:      size,
		PyramidBaseSize:    size,
		TrailActivationPct: trailActivation,
		TrailPct:           trailing,
		BestPrice:          entry,
		RealizedFees:       openFee,
		RealizedNet:        -openFee,
		OpenedAt:           now,
		FundingLastTS:      now,
	}

	if d.PumpScore >= risk.PumpScoreTight && d.ExpectedHoldMin > 0 {
		hold := d.ExpectedHoldMin
		if hold < timerHoldMinMinutes {
			hold = timerHoldMinMinutes
		}
		if hold > timerHoldMaxMinutes {
			hold = timerHoldMaxMinutes
		}
		deadline := now.Add(time.Duration(hold * float64(time.Minute)))
		t.TimerDeadline = &deadline
	}

	l.mu.Lock()
	l.trades[t.ID] = t
	open := len(l.trades)
	l.mu.Unlock()

	l.persistLive(t)
	l.saveEvent("trade_opened", d.ID, t.ID, t.Asset, map[string]any{
		"entry": t.Entry, "stop": t.Stop, "take_profit": t.TakeProfit,
		"size": t.InitialSize, "leverage": t.Leverage, "path": res.Path,
	})
	metrics.Decisions.WithLabelValues("opened").Inc()
	metrics.OpenTrades.Set(float64(open))

	if t.TimerDeadline != nil {
		l.armTimer(t.ID, time.Until(*t.TimerDeadline), "pump_timer")
	}

	log.Info().Str("trade_id", t.ID).Float64("entry", t.Entry).
		Float64("size", t.InitialSize).Str("path", res.Path).Msg("trade opened")
	return Result{Outcome: OutcomeOpened, TradeID: t.ID}, nil
}

// sanitizeLeverage clamps requested leverage to the engine, account and
// regime caps.
func (l *Ledger) sanitizeLeverage(requested int, profile regime.Profile) int {
	lev := requested
	if lev < minLeverage {
		lev = minLeverage
	}
	if lev > l.cfg.Engine.MaxLeverage {
		lev = l.cfg.Engine.MaxLeverage
	}
	if !l.cfg.Engine.Simulation && l.book.Equity() < liveEquityFloor && lev > liveEquityLeverCap {
		lev = liveEquityLeverCap
	}
	if profile.LeverageCap > 0 && lev > profile.LeverageCap {
		lev = profile.LeverageCap
	}
	return lev
}

// sizePosition converts a decision into base units. Explicit contract
// counts are honored up to the sleeve's notional cap; otherwise size comes
// from the sleeve budget and risk fraction.
func (l *Ledger) sizePosition(d Decision, price, riskMult float64, safe bool) float64 {
	budget := l.book.Budget(safe)
	riskPct := l.book.RiskPct(safe)
	if d.RiskPctOverride > 0 {
		riskPct = d.RiskPctOverride
	}

	var size float64
	if d.Contracts > 0 {
		size = d.Contracts * riskMult
		if notionalCap := budget * riskPct; notionalCap > 0 && size*price > notionalCap {
			size = notionalCap / price
		}
	} else {
		size = budget * riskPct * riskMult / price
	}
	return broker.RoundBaseSize(size)
}

// simFillPrice applies the paper slippage model: the base slippage plus an
// ATR-scaled component, capped at the configured maximum, always adverse.
// Without an ATR the band midpoint is assumed.
func (l *Ledger) simFillPrice(price, atr float64, long, opening bool) float64 {
	var slipPct float64
	if atr > 0 {
		slipPct = l.cfg.Sim.SlippageMinPct + atr/price*100*l.cfg.Sim.SlippageATRMult
	} else {
		slipPct = (l.cfg.Sim.SlippageMinPct + l.cfg.Sim.SlippageMaxPct) / 2
	}
	if slipPct > l.cfg.Sim.SlippageMaxPct {
		slipPct = l.cfg.Sim.SlippageMaxPct
	}
	adverseUp := long == opening
	if adverseUp {
		return price * (1 + slipPct/100)
	}
	return price * (1 - slipPct/100)
}

// Open returns a copy of one open trade.
func (l *Ledger) Open(tradeID string) (Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.trades[tradeID]
	if !ok {
		return Trade{}, false
	}
	return *t, true
}

// OpenTrades returns copies of every open trade.
func (l *Ledger) OpenTrades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, 0, len(l.trades))
	for _, t := range l.trades {
		out = append(out, *t)
	}
	return out
}

func (l *Ledger) persistLive(t *Trade) {
	if l.st == nil {
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		l.log.Error().Err(err).Str("trade_id", t.ID).Msg("marshal live trade failed")
		return
	}
	if err := l.st.SaveLiveTrade(t.ID, payload); err != nil {
		l.log.Error().Err(err).Str("trade_id", t.ID).Msg("persist live trade failed")
	}
}

func (l *Ledger) saveEvent(eventType, decisionID, tradeID, asset string, payload map[string]any) {
	if l.st == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		l.log.Error().Err(err).Msg("marshal event failed")
		return
	}
	err = l.st.SaveEvent(store.EventRow{
		EventID:    id.New(),
		Time:       time.Now().UTC(),
		EventType:  eventType,
		DecisionID: decisionID,
		TradeID:    tradeID,
		Asset:      asset,
		Payload:    body,
	})
	if err != nil {
		l.log.Error().Err(err).Str("event_type", eventType).Msg("persist event failed")
	}
}
