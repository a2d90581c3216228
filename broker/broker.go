// Package broker defines the exchange adapter surface the order router
// speaks to. Implementations translate these calls into venue-specific
// order placement; the sim and tests provide in-memory ones.
package broker

import "context"

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the closing side for a position opened with s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderRequest describes one order submission. BaseSize and LimitPrice are
// pre-formatted wire strings so the venue sees exact decimals.
type OrderRequest struct {
	ClientOrderID string
	Asset         string
	Side          Side
	BaseSize      string
	LimitPrice    string
	PostOnly      bool
	Leverage      int
}

// Placement is the venue's acknowledgement of an accepted order.
type Placement struct {
	OrderID string
	Status  string
}

type Exchange interface {
	LimitOrderGTC(ctx context.Context, req OrderRequest) (Placement, error)
	LimitOrderIOC(ctx context.Context, req OrderRequest) (Placement, error)
	MarketOrder(ctx context.Context, req OrderRequest) (Placement, error)
}
