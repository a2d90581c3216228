package ledger

import (
	"errors"
	"time"

	"github.com/UnderhillForge/PiTrader/broker"
)

// Decision actions.
const (
	ActionBuy   = "buy"
	ActionSell  = "sell"
	ActionClose = "close"
	ActionHold  = "hold"
)

// Sleeves.
const (
	SleeveSafe    = "safe"
	SleeveNuclear = "nuclear"
)

// Trade status values.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Execute outcomes.
const (
	OutcomeOpened  = "opened"
	OutcomeBlocked = "blocked"
	OutcomeClosed  = "closed"
	OutcomeFailed  = "failed"
	OutcomeHeld    = "held"
)

var (
	ErrInvalidAction = errors.New("invalid decision action")
	ErrInvalidAsset  = errors.New("invalid asset symbol")
	ErrUnknownTrade  = errors.New("unknown trade id")
)

// Decision is one upstream trading instruction. Stop, take-profit and the
// trailing parameters are optional; zero means "derive from ATR" and
// "use the defaults" respectively.
type Decision struct {
	ID              string  `json:"id"`
	Action          string  `json:"action"`
	Asset           string  `json:"asset"`
	Sleeve          string  `json:"sleeve"`
	Conviction      int     `json:"conviction"`
	PumpScore       int     `json:"pump_score"`
	Leverage        int     `json:"leverage"`
	Contracts       float64 `json:"contracts,omitempty"`
	Stop            float64 `json:"stop,omitempty"`
	TakeProfit      float64 `json:"take_profit,omitempty"`
	TrailActPct     float64 `json:"trailing_activation_pct,omitempty"`
	TrailPct        float64 `json:"trailing_pct,omitempty"`
	RiskPctOverride float64 `json:"risk_pct_override,omitempty"`
	ExpectedHoldMin float64 `json:"expected_hold_min,omitempty"`
	Reason          string  `json:"reason,omitempty"`
}

// Result is the outcome of executing one decision.
type Result struct {
	Outcome string
	Gate    string
	Reason  string
	TradeID string
}

func blocked(gate, reason string) Result {
	return Result{Outcome: OutcomeBlocked, Gate: gate, Reason: reason}
}

// Trade is one open or settled position. It is the payload persisted in the
// live trade store, so every field the monitor needs must be serializable.
type Trade struct {
	ID         string      `json:"id"`
	DecisionID string      `json:"decision_id"`
	Asset      string      `json:"asset"`
	Side       broker.Side `json:"side"`
	Status     string      `json:"status"`
	Sleeve     string      `json:"sleeve"`
	Conviction int         `json:"conviction"`
	PumpScore  int         `json:"pump_score"`
	Leverage   int         `json:"leverage"`

	Entry         float64 `json:"entry"`
	InitialStop   float64 `json:"initial_stop"`
	Stop          float64 `json:"stop"`
	TakeProfit    float64 `json:"take_profit"`
	InitialSize   float64 `json:"initial_size"`
	RemainingSize float64 `json:"remaining_size"`

	TrailActivationPct float64 `json:"trail_activation_pct"`
	TrailPct           float64 `json:"trail_pct"`
	TrailActive        bool    `json:"trail_active"`
	BestPrice          float64 `json:"best_price"`

	Partial15Done   bool    `json:"partial_15_done"`
	Partial30Done   bool    `json:"partial_30_done"`
	AddCount        int     `json:"add_count"`
	PyramidBaseSize float64 `json:"pyramid_base_size"`

	RealizedGross   float64 `json:"realized_gross"`
	RealizedFees    float64 `json:"realized_fees"`
	RealizedFunding float64 `json:"realized_funding"`
	RealizedNet     float64 `json:"realized_net"`
	// Credited is the net already pushed into the book by partial closes,
	// so the final settle only credits the difference.
	Credited float64 `json:"credited_net"`

	OpenedAt      time.Time  `json:"opened_at"`
	FundingLastTS time.Time  `json:"funding_last_ts"`
	TimerDeadline *time.Time `json:"timer_deadline,omitempty"`

	ExitPrice   float64    `json:"exit_price,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// Long reports whether the position profits when price rises.
func (t *Trade) Long() bool { return t.Side == broker.Buy }

// riskPerUnit is the per-unit risk distance at the current stop, the
// denominator of every realized-RR measure. Once trailing ratchets the stop
// past entry it goes non-positive and RR-driven triggers stop firing.
func (t *Trade) riskPerUnit() float64 {
	if t.Long() {
		return t.Entry - t.Stop
	}
	return t.Stop - t.Entry
}

// RRNow is the trade's current reward multiple at the given price.
func (t *Trade) RRNow(price float64) (float64, bool) {
	risk := t.riskPerUnit()
	if risk <= 0 {
		return 0, false
	}
	if t.Long() {
		return (price - t.Entry) / risk, true
	}
	return (t.Entry - price) / risk, true
}
