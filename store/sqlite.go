package store

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveTrade(t TradeRow) error {
	_, err := s.db.Exec(`
		INSERT INTO trades
		(id, ts, asset, side, size, entry, exit, pnl, pnl_gross, fee_cost, funding_cost, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Time, t.Asset, t.Side, t.Size, t.Entry,
		t.Exit, t.PnL, t.PnLGross, t.FeeCost, t.FundingCost, t.Reason,
	)
	return err
}

func (s *SQLiteStore) RecentTrades(limit int) ([]TradeRow, error) {
	rows, err := s.db.Query(`
		SELECT id, ts, asset, side, size, entry, exit, pnl, pnl_gross, fee_cost, funding_cost, reason
		FROM trades ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRow
	for rows.Next() {
		var t TradeRow
		if err := rows.Scan(&t.ID, &t.Time, &t.Asset, &t.Side, &t.Size, &t.Entry,
			&t.Exit, &t.PnL, &t.PnLGross, &t.FeeCost, &t.FundingCost, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveEvent(e EventRow) error {
	_, err := s.db.Exec(`
		INSERT INTO trade_events
		(event_id, ts, event_type, decision_id, trade_id, asset, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Time, e.EventType, e.DecisionID, e.TradeID, e.Asset, string(e.Payload),
	)
	return err
}

func (s *SQLiteStore) SaveLiveTrade(id string, payload []byte) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO live_trades (id, updated_ts, payload)
		VALUES (?, ?, ?)`,
		id, time.Now().UTC(), string(payload),
	)
	return err
}

func (s *SQLiteStore) DeleteLiveTrade(id string) error {
	_, err := s.db.Exec(`DELETE FROM live_trades WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) LoadLiveTrades() ([]LiveTradeRow, error) {
	rows, err := s.db.Query(`SELECT id, updated_ts, payload FROM live_trades`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LiveTradeRow
	for rows.Next() {
		var r LiveTradeRow
		var payload string
		if err := rows.Scan(&r.ID, &r.Updated, &payload); err != nil {
			return nil, err
		}
		r.Payload = []byte(payload)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveEquityPoint(p EquityPoint) error {
	_, err := s.db.Exec(`INSERT INTO equity_history (ts, equity) VALUES (?, ?)`,
		p.Time, p.Equity)
	return err
}

// LoadEquityHistory returns the newest points in chronological order.
func (s *SQLiteStore) LoadEquityHistory(limit int) ([]EquityPoint, error) {
	rows, err := s.db.Query(`
		SELECT ts, equity FROM equity_history ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityPoint
	for rows.Next() {
		var p EquityPoint
		if err := rows.Scan(&p.Time, &p.Equity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQLiteStore) SavePortfolioState(p PortfolioState) error {
	_, err := s.db.Exec(`
		INSERT INTO portfolio_state (ts, total, mode, aggr, safe, reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Time, p.Total, p.Mode, p.Aggr, p.Safe, p.Reason,
	)
	return err
}

func (s *SQLiteStore) LoadPortfolioState() (PortfolioState, bool, error) {
	row := s.db.QueryRow(`
		SELECT ts, total, mode, aggr, safe, reason
		FROM portfolio_state ORDER BY ts DESC LIMIT 1`)

	var p PortfolioState
	err := row.Scan(&p.Time, &p.Total, &p.Mode, &p.Aggr, &p.Safe, &p.Reason)
	if err == sql.ErrNoRows {
		return PortfolioState{}, false, nil
	}
	if err != nil {
		return PortfolioState{}, false, err
	}
	return p, true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
