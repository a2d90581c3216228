// Package store persists trades, events, live positions, equity history and
// portfolio state behind a single interface so the engine can run against
// SQLite in production and a fake in tests.
package store

import "time"

// TradeRow is one settled trade in the journal.
type TradeRow struct {
	ID          string
	Time        time.Time
	Asset       string
	Side        string
	Size        float64
	Entry       float64
	Exit        float64
	PnL         float64
	PnLGross    float64
	FeeCost     float64
	FundingCost float64
	Reason      string
}

// EventRow is one decision or lifecycle event, payload is JSON.
type EventRow struct {
	EventID    string
	Time       time.Time
	EventType  string
	DecisionID string
	TradeID    string
	Asset      string
	Payload    []byte
}

// LiveTradeRow carries an open position as an opaque JSON payload; the
// ledger owns the shape.
type LiveTradeRow struct {
	ID      string
	Updated time.Time
	Payload []byte
}

// EquityPoint is one equity observation.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// PortfolioState is the last persisted sleeve split.
type PortfolioState struct {
	Time   time.Time
	Total  float64
	Mode   string
	Aggr   float64
	Safe   float64
	Reason string
}

type Store interface {
	SaveTrade(TradeRow) error
	RecentTrades(limit int) ([]TradeRow, error)

	SaveEvent(EventRow) error

	SaveLiveTrade(id string, payload []byte) error
	DeleteLiveTrade(id string) error
	LoadLiveTrades() ([]LiveTradeRow, error)

	SaveEquityPoint(EquityPoint) error
	LoadEquityHistory(limit int) ([]EquityPoint, error)

	SavePortfolioState(PortfolioState) error
	LoadPortfolioState() (PortfolioState, bool, error)

	Close() error
}
