package marketdata

import "sync"

// CandleHandler is a subscriber callback invoked on every confirmed candle
// close, grounded on the pack's yitech-candles aggregator subscriber shape
// (simplified here from its multi-exchange merge to the single-exchange
// case this spec needs).
type CandleHandler func(Candle)

// CandleAggregator receives closed-candle events from ExchangeStream,
// writes them into the store, and fans out to subscribers. The write must
// be atomic against readers (no torn list) — MarketDataStore already gives
// per-key atomicity, so the aggregator itself only needs to serialize its
// own subscriber list.
type CandleAggregator struct {
	store *MarketDataStore

	mu sync.RWMutex
	handlers map[uint64]CandleHandler
	nextID uint64
}

// NewCandleAggregator constructs an aggregator writing into store.
func NewCandleAggregator(store *MarketDataStore) *CandleAggregator {
	return &CandleAggregator{
		store:    store,
		handlers: make(map[uint64]CandleHandler),
	}
}

// Subscribe registers handler for every future confirmed candle. Returns an
// unsubscribe function.
func (a *CandleAggregator) Subscribe(h CandleHandler) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.handlers[id] = h
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.handlers, id)
		a.mu.Unlock()
	}
}

// OnCandleClose stores c, then fans it out to subscribers. ExchangeStream
// calls it only for confirmed (closed) candles; in-progress kline updates
// are dropped by the decoder and no current-candle lookup is kept. The
// control plane's REST warm-up writes to the store directly, without
// fan-out.
func (a *CandleAggregator) OnCandleClose(c Candle) {
	if !c.Valid() {
		return
	}
	a.store.PutCandle(c)

	a.mu.RLock()
	handlers := make([]CandleHandler, 0, len(a.handlers))
	for _, h := range a.handlers {
		handlers = append(handlers, h)
	}
	a.mu.RUnlock()

	for _, h := range handlers {
		h(c)
	}
}
