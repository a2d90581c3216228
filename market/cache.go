package market

import (
	"sync"
	"time"
)

// historyCap bounds the per-asset price history ring kept for the regime
// classifier.
const historyCap = 500

// Cache is the shared read surface for market data. Each field is written by
// exactly one ingestion path and read by the gates, the router guard and the
// ledger; reads tolerate slightly stale values because every snapshot carries
// its own timestamp and the data-quality gate checks ages explicitly.
type Cache struct {
	mu        sync.RWMutex
	prices    map[string]PricePoint
	vol       map[string]ATRBundle
	micro     map[string]Micro
	liquidity map[string]Liquidity
	history   map[string][]float64
	basket    []string
}

func NewCache() *Cache {
	return &Cache{
		prices:    make(map[string]PricePoint),
		vol:       make(map[string]ATRBundle),
		micro:     make(map[string]Micro),
		liquidity: make(map[string]Liquidity),
		history:   make(map[string][]float64),
	}
}

// SetPrice records the latest price for an asset and appends it to the
// regime history ring.
func (c *Cache) SetPrice(asset string, price float64, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[asset] = PricePoint{Price: price, Time: at}

	hist := append(c.history[asset], price)
	if len(hist) > historyCap {
		hist = hist[len(hist)-historyCap:]
	}
	c.history[asset] = hist
}

// Price returns the latest price for an asset.
func (c *Cache) Price(asset string) (PricePoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[asset]
	return p, ok
}

func (c *Cache) SetATR(asset string, b ATRBundle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vol[asset] = b
}

func (c *Cache) ATR(asset string) (ATRBundle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.vol[asset]
	return b, ok
}

func (c *Cache) SetMicro(asset string, m Micro) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.micro[asset] = m
}

func (c *Cache) Micro(asset string) (Micro, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.micro[asset]
	return m, ok
}

func (c *Cache) SetLiquidity(asset string, l Liquidity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liquidity[asset] = l
}

func (c *Cache) Liquidity(asset string) (Liquidity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.liquidity[asset]
	return l, ok
}

// SetBasket replaces the tradable universe.
func (c *Cache) SetBasket(assets []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.basket = append([]string(nil), assets...)
}

// Basket returns a copy of the tradable universe.
func (c *Cache) Basket() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.basket...)
}

// History returns up to n most recent prices for an asset, oldest first.
func (c *Cache) History(asset string, n int) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hist := c.history[asset]
	if n > 0 && len(hist) > n {
		hist = hist[len(hist)-n:]
	}
	return append([]float64(nil), hist...)
}
