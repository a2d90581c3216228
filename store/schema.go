// store/schema.go
package store

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	ts DATETIME NOT NULL,
	asset TEXT NOT NULL,
	side TEXT NOT NULL,
	size REAL NOT NULL,
	entry REAL NOT NULL,
	exit REAL NOT NULL,
	pnl REAL NOT NULL,
	pnl_gross REAL NOT NULL,
	fee_cost REAL NOT NULL,
	funding_cost REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_events (
	event_id TEXT PRIMARY KEY,
	ts DATETIME NOT NULL,
	event_type TEXT NOT NULL,
	decision_id TEXT,
	trade_id TEXT,
	asset TEXT,
	payload TEXT
);

CREATE TABLE IF NOT EXISTS live_trades (
	id TEXT PRIMARY KEY,
	updated_ts DATETIME NOT NULL,
	payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts DATETIME NOT NULL,
	equity REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolio_state (
	ts DATETIME NOT NULL,
	total REAL NOT NULL,
	mode TEXT NOT NULL,
	aggr REAL NOT NULL,
	safe REAL NOT NULL,
	reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts);
CREATE INDEX IF NOT EXISTS idx_events_ts ON trade_events(ts);
CREATE INDEX IF NOT EXISTS idx_equity_ts ON equity_history(ts);
`
