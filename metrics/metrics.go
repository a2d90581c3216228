// Package metrics exposes the engine's Prometheus collectors:
//   - engine_decisions_total{outcome}       – decisions by outcome (opened|blocked|closed|held|error)
//   - engine_blocks_total{gate}             – entry blocks split by gate
//   - engine_orders_total{path}             – order submissions by execution path
//   - engine_trades_closed_total{reason}    – settled trades by close reason
//   - engine_equity_usd                     – current simulated equity (gauge)
//   - engine_open_trades                    – open position count (gauge)
//   - engine_health_state{state}            – exchange health indicator (0/1 per state)
//   - engine_drawdown_pct{window}           – drawdown per window (daily|weekly|ath)
//   - engine_realized_pnl_usd               – cumulative realized net PnL
//
// Collectors are registered in init() and served at /metrics by the runtime.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_decisions_total",
			Help: "Decisions processed by outcome",
		},
		[]string{"outcome"},
	)

	Blocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_blocks_total",
			Help: "Entry decisions blocked, split by gate",
		},
		[]string{"gate"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_orders_total",
			Help: "Order submissions by execution path",
		},
		[]string{"path"},
	)

	TradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_trades_closed_total",
			Help: "Settled trades by close reason",
		},
		[]string{"reason"},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_equity_usd",
			Help: "Simulated account equity in USD",
		},
	)

	OpenTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_open_trades",
			Help: "Currently open positions",
		},
	)

	// One labeled series per state, flipped between 0 and 1.
	HealthState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_health_state",
			Help: "Exchange health state indicator",
		},
		[]string{"state"},
	)

	Drawdown = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_drawdown_pct",
			Help: "Current drawdown per window",
		},
		[]string{"window"},
	)

	RealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_realized_pnl_usd",
			Help: "Cumulative realized net PnL in USD",
		},
	)
)

func init() {
	prometheus.MustRegister(Decisions, Blocks, Orders)
	prometheus.MustRegister(TradesClosed)
	prometheus.MustRegister(Equity, OpenTrades, RealizedPnL)
	prometheus.MustRegister(HealthState, Drawdown)
}

// SetHealthState flips the health indicator to the given state.
func SetHealthState(state string) {
	for _, s := range []string{"healthy", "degraded", "outage", "recovering"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		HealthState.WithLabelValues(s).Set(v)
	}
}
