// Package exec routes order submissions through a maker-first escalation
// chain: post-only limit, then IOC limit, then a guarded market order.
package exec

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/UnderhillForge/PiTrader/broker"
	"github.com/UnderhillForge/PiTrader/config"
	"github.com/UnderhillForge/PiTrader/market"
)

// Execution paths, recorded on every submission.
const (
	PathPostOnly      = "post_only"
	PathIOC           = "ioc"
	PathMarket        = "market"
	PathLimitRetryIOC = "limit_retry_ioc"
	PathRejected      = "rejected"
	PathFailed        = "failed"
	PathDryRun        = "dry_run"
	PathNone          = "none"
)

// maxReasonLen bounds the accumulated failure reason so a flapping venue
// cannot grow it without limit.
const maxReasonLen = 400

// Result is the outcome of one Submit call.
type Result struct {
	Path    string
	OrderID string
	Filled  bool
	Reason  string
	Time    time.Time
}

// Router escalates order placement until a stage fills or every stage is
// exhausted. It is safe for concurrent use.
type Router struct {
	cfg      config.ExecutionConfig
	exchange broker.Exchange
	cache    *market.Cache
	dryRun   bool
	log      zerolog.Logger

	mu   sync.Mutex
	last Result
}

func NewRouter(cfg config.ExecutionConfig, exchange broker.Exchange, cache *market.Cache, dryRun bool, log zerolog.Logger) *Router {
	return &Router{
		cfg:      cfg,
		exchange: exchange,
		cache:    cache,
		dryRun:   dryRun,
		log:      log.With().Str("component", "router").Logger(),
	}
}

// Last returns the most recent submission result, for telemetry.
func (r *Router) Last() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Router) record(res Result) Result {
	res.Time = time.Now().UTC()
	r.mu.Lock()
	r.last = res
	r.mu.Unlock()
	return res
}

// Submit places an order for size base units of asset, escalating through
// the configured stages. refPrice anchors the limit prices.
func (r *Router) Submit(ctx context.Context, asset string, side broker.Side, size, refPrice float64, leverage int) Result {
	if r.dryRun {
		r.log.Info().Str("asset", asset).Str("side", string(side)).
			Float64("size", size).Msg("dry run, order not sent")
		return r.record(Result{Path: PathDryRun, Filled: true})
	}
	if r.exchange == nil {
		return r.record(Result{Path: PathNone, Reason: "client_unavailable"})
	}

	var failures []string
	appendFailure := func(stage string, err error) {
		failures = append(failures, fmt.Sprintf("%s: %v", stage, err))
	}

	base := broker.OrderRequest{
		ClientOrderID: uuid.NewString(),
		Asset:         asset,
		Side:          side,
		BaseSize:      broker.FormatBaseSize(size),
		Leverage:      leverage,
	}

	if r.cfg.PostOnlyEnabled {
		req := base
		req.PostOnly = true
		req.LimitPrice = broker.FormatLimitPrice(offsetPrice(refPrice, side, -r.cfg.PostOnlyOffsetPct))
		if p, err := r.exchange.LimitOrderGTC(ctx, req); err == nil {
			r.log.Info().Str("asset", asset).Str("order_id", p.OrderID).Msg("post-only limit accepted")
			return r.record(Result{Path: PathPostOnly, OrderID: p.OrderID, Filled: true})
		} else {
			appendFailure("post_only", err)
		}
	}

	if r.cfg.IOCEnabled {
		req := base
		req.LimitPrice = broker.FormatLimitPrice(offsetPrice(refPrice, side, r.cfg.IOCSlippagePct))
		if p, err := r.exchange.LimitOrderIOC(ctx, req); err == nil {
			r.log.Info().Str("asset", asset).Str("order_id", p.OrderID).Msg("ioc limit accepted")
			return r.record(Result{Path: PathIOC, OrderID: p.OrderID, Filled: true})
		} else {
			appendFailure("ioc", err)
		}
	}

	if r.cfg.MarketEnabled {
		if guardReason := r.marketGuard(asset, size, refPrice); guardReason == "" {
			if p, err := r.exchange.MarketOrder(ctx, base); err == nil {
				r.log.Info().Str("asset", asset).Str("order_id", p.OrderID).Msg("market order accepted")
				return r.record(Result{Path: PathMarket, OrderID: p.OrderID, Filled: true})
			} else {
				appendFailure("market", err)
			}
		} else {
			appendFailure("market_guard", fmt.Errorf("%s", guardReason))
			if r.cfg.GuardLimitRetry {
				req := base
				req.LimitPrice = broker.FormatLimitPrice(offsetPrice(refPrice, side, r.cfg.GuardRetrySlippagePct))
				if p, err := r.exchange.LimitOrderIOC(ctx, req); err == nil {
					r.log.Info().Str("asset", asset).Str("order_id", p.OrderID).Msg("guard retry ioc accepted")
					return r.record(Result{Path: PathLimitRetryIOC, OrderID: p.OrderID, Filled: true})
				} else {
					appendFailure("limit_retry_ioc", err)
				}
			}
			reason := capReason(strings.Join(failures, "; "))
			r.log.Warn().Str("asset", asset).Str("reason", reason).Msg("order rejected by market guard")
			return r.record(Result{Path: PathRejected, Reason: reason})
		}
	}

	reason := capReason(strings.Join(failures, "; "))
	r.log.Error().Str("asset", asset).Str("reason", reason).Msg("all execution stages failed")
	return r.record(Result{Path: PathFailed, Reason: reason})
}

// offsetPrice shifts refPrice by pct percent in the adverse direction for
// buys and the favorable one for sells; negative pct inverts that, which is
// how post-only rests inside the spread.
func offsetPrice(refPrice float64, side broker.Side, pct float64) float64 {
	if side == broker.Buy {
		return refPrice * (1 + pct/100)
	}
	return refPrice * (1 - pct/100)
}

// marketGuard returns "" when a market order is acceptable, otherwise the
// rejection reason.
func (r *Router) marketGuard(asset string, size, refPrice float64) string {
	liq, ok := r.cache.Liquidity(asset)
	if !ok || liq.SpreadPct == nil {
		return "spread_unavailable"
	}
	if *liq.SpreadPct > r.cfg.GuardMaxSpreadPct {
		return fmt.Sprintf("spread>%.2f%%", r.cfg.GuardMaxSpreadPct)
	}
	if liq.Volume1m <= 0 {
		return "vol1m_unavailable"
	}
	notional := size * refPrice
	if notional/liq.Volume1m*100 > r.cfg.GuardMaxSizeToVol1m {
		return fmt.Sprintf("size_to_vol1m>%.2f%%", r.cfg.GuardMaxSizeToVol1m)
	}
	return ""
}

func capReason(reason string) string {
	if len(reason) > maxReasonLen {
		return reason[:maxReasonLen]
	}
	return reason
}
