package exchange

import (
	"sync"

	"github.com/shopspring/decimal"
)

// SymbolInfo holds the lot-size/tick-size precision metadata
// GetLotSizeInfo/GetTickSize expose.
type SymbolInfo struct {
	TickSize float64
	LotSize float64
}

// SymbolInfoCache caches exchange precision metadata, generalizing the
// donor's symbolInfo map in execution_service.go/predator_engine.go (both
// duplicate the same cache there; consolidated here into one type).
type SymbolInfoCache struct {
	mu sync.RWMutex
	info map[string]SymbolInfo
}

// NewSymbolInfoCache constructs an empty cache.
func NewSymbolInfoCache() *SymbolInfoCache {
	return &SymbolInfoCache{info: make(map[string]SymbolInfo)}
}

// Set records precision metadata for symbol.
func (c *SymbolInfoCache) Set(symbol string, info SymbolInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info[symbol] = info
}

// Get returns the cached metadata, or a fixed fallback (tick 0.01,
// lot 0.001) if unknown.
func (c *SymbolInfoCache) Get(symbol string) SymbolInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if info, ok := c.info[symbol]; ok {
		return info
	}
	return SymbolInfo{TickSize: 0.01, LotSize: 0.001}
}

// Has reports whether symbol has a real cached entry, as opposed to Get's
// fallback default — callers must not infer population from Get's return
// value matching the fallback, since a real symbol can legitimately have
// those exact tick/lot values.
func (c *SymbolInfoCache) Has(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.info[symbol]
	return ok
}

// RoundToTick rounds price to the nearest tick, using shopspring/decimal
// for the final pass instead of the donor's math.Floor(v/tick+0.5)*tick on
// a raw float64.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	units := p.Div(t).Round(0)
	return units.Mul(t).InexactFloat64()
}

// RoundToLot floors quantity down to the nearest lot — entries and
// partial-closes must never round up past the requested size.
func RoundToLot(qty, lot float64) float64 {
	if lot <= 0 {
		return qty
	}
	q := decimal.NewFromFloat(qty)
	l := decimal.NewFromFloat(lot)
	units := q.Div(l).Floor()
	return units.Mul(l).InexactFloat64()
}
