// Package market holds the typed per-asset snapshots the engine consumes:
// spot prices, ATR bundles, order-book microstructure and top-of-book
// liquidity. Ingestion lives outside the core; this package is the boundary
// where whatever the feed produced becomes typed values with timestamps.
package market

import "time"

// Candle is a single OHLC bar used for ATR computation.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PricePoint is the latest observed price for an asset.
type PricePoint struct {
	Price float64
	Time  time.Time
}

// ATRBundle carries the 1h and 6h average true ranges for an asset.
// A zero value means the horizon is unavailable.
type ATRBundle struct {
	OneHour float64
	SixHour float64
	Time    time.Time
}

// Has1h reports whether the 1h ATR is usable.
func (b ATRBundle) Has1h() bool { return b.OneHour > 0 }

// Has6h reports whether the 6h ATR is usable.
func (b ATRBundle) Has6h() bool { return b.SixHour > 0 }

// Available reports whether either horizon is usable.
func (b ATRBundle) Available() bool { return b.Has1h() || b.Has6h() }

// Micro is the order-book / tape snapshot for an asset. Optional metrics are
// pointers: the micro gate must distinguish "missing" from a true zero.
type Micro struct {
	BidDepthUSD  *float64
	AskDepthUSD  *float64
	OBImbalance  *float64 // 0..1, fraction of visible depth on the bid
	TapeDeltaPct *float64 // signed recent taker flow, buys minus sells
	Time         time.Time
}

// TotalDepthUSD returns the combined visible depth, and whether any depth
// was reported at all.
func (m Micro) TotalDepthUSD() (float64, bool) {
	if m.BidDepthUSD == nil && m.AskDepthUSD == nil {
		return 0, false
	}
	var total float64
	if m.BidDepthUSD != nil {
		total += *m.BidDepthUSD
	}
	if m.AskDepthUSD != nil {
		total += *m.AskDepthUSD
	}
	return total, true
}

// Liquidity is the spread / volume snapshot the market guard consumes.
type Liquidity struct {
	SpreadPct *float64
	Mid       float64
	Volume1m  float64 // 1-minute traded volume, base units
	Time      time.Time
}
