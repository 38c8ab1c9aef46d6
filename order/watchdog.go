package order

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yjx-labs/swapscalp/exchange"
	"github.com/yjx-labs/swapscalp/marketdata"
	"github.com/yjx-labs/swapscalp/signal"
)

const (
	lotTolerance    = 0.5 // +/- half a lot on quantity checks
	tickTolerance   = 1.5 // +/- 1.5 ticks on trigger-price checks
	algoListBackoff = 60 * time.Second
)

// Watchdog periodically reconciles the Coordinator's in-memory Position
// table against live exchange state, rebuilding missing or misaligned
// TP/SL orders. Grounded on the donor's monitorLimitOrder ticker-poll
// pattern, generalized from one in-flight order into a full-table audit.
type Watchdog struct {
	log             zerolog.Logger
	coord           *Coordinator
	adapter         exchange.Adapter
	marks           *marketdata.MarkPrices
	interval        time.Duration
	rebuildCooldown time.Duration

	mu              sync.Mutex
	lastRebuild     map[string]time.Time
	algoListBackoff map[string]time.Time
}

// NewWatchdog constructs a Watchdog polling at interval with the given
// per-symbol rebuild cooldown.
func NewWatchdog(log zerolog.Logger, coord *Coordinator, adapter exchange.Adapter, marks *marketdata.MarkPrices, interval, rebuildCooldown time.Duration) *Watchdog {
	return &Watchdog{
		log:             log,
		coord:           coord,
		adapter:         adapter,
		marks:           marks,
		interval:        interval,
		rebuildCooldown: rebuildCooldown,
		lastRebuild:     make(map[string]time.Time),
		algoListBackoff: make(map[string]time.Time),
	}
}

// Run ticks once per interval until ctx is canceled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tickSafely(ctx)
		}
	}
}

func (w *Watchdog) tickSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msg("recovered panic in watchdog tick")
		}
	}()
	_, positions := w.coord.Snapshot()
	for _, pos := range positions {
		w.auditOne(ctx, pos)
	}
}

func (w *Watchdog) inAlgoBackoff(symbol string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	until, ok := w.algoListBackoff[symbol]
	return ok && time.Now().Before(until)
}

func (w *Watchdog) setAlgoBackoff(symbol string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.algoListBackoff[symbol] = time.Now().Add(algoListBackoff)
}

func (w *Watchdog) canRebuild(symbol string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.lastRebuild[symbol]
	return !ok || time.Since(last) >= w.rebuildCooldown
}

func (w *Watchdog) markRebuilt(symbol string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRebuild[symbol] = time.Now()
}

func (w *Watchdog) auditOne(ctx context.Context, pos Position) {
	log := w.log.With().Str("symbol", pos.Symbol).Logger()

	if w.coord.HasPendingOrder(pos.Symbol) {
		return
	}

	live, err := w.adapter.GetOpenPositions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("list positions failed")
		return
	}
	if !hasLivePosition(live, pos.Symbol) {
		if err := w.adapter.CancelAllAlgoOrders(ctx, pos.Symbol); err != nil {
			log.Warn().Err(err).Msg("cancel residual algo orders failed")
		}
		w.coord.RemovePositionIfGone(ctx, pos.Symbol)
		return
	}

	if w.inAlgoBackoff(pos.Symbol) {
		return
	}
	algos, err := w.adapter.GetOpenAlgoOrders(ctx, pos.Symbol)
	if err != nil {
		log.Warn().Err(err).Msg("list algo orders failed, entering backoff")
		w.setAlgoBackoff(pos.Symbol)
		return
	}

	mark, _ := w.marks.Get(pos.Symbol)
	if mark <= 0 {
		mark = pos.EntryPrice
	}
	lot, err := w.adapter.GetLotSizeInfo(ctx, pos.Symbol)
	if err != nil {
		lot = 0.001
	}
	tick, err := w.adapter.GetTickSize(ctx, pos.Symbol)
	if err != nil {
		tick = 0.01
	}

	expectedTPQty := pos.Quantity
	if !pos.TP1Filled && pos.splitTP {
		expectedTPQty = exchange.RoundToLot(pos.Quantity*0.5, lot)
	}
	expectedTPTrigger := pos.TP2Price
	if !pos.splitTP {
		expectedTPTrigger = pos.TPPrice
	} else if !pos.TP1Filled {
		expectedTPTrigger = pos.TP1Price
	}
	expectedTPTrigger = clampSL(oppositeOf(pos.Direction), expectedTPTrigger, mark, tick)
	expectedSLTrigger := clampSL(pos.Direction, pos.SLPrice, mark, tick)

	var sl, tp *exchange.AlgoOrder
	for i := range algos {
		a := &algos[i]
		if a.Quantity <= 0 {
			continue
		}
		switch a.Type {
		case exchange.TypeStop, exchange.TypeStopMarket:
			sl = a
		case exchange.TypeTakeProfit, exchange.TypeTakeProfitMkt:
			tp = a
		}
	}

	aligned := sl != nil && tp != nil &&
		withinQty(sl.Quantity, pos.Quantity, lot) &&
		withinQty(tp.Quantity, expectedTPQty, lot) &&
		withinPrice(sl.TriggerPrice, expectedSLTrigger, tick) &&
		withinPrice(tp.TriggerPrice, expectedTPTrigger, tick)

	if aligned {
		return
	}
	if !w.canRebuild(pos.Symbol) {
		return
	}

	if err := w.adapter.CancelAllAlgoOrders(ctx, pos.Symbol); err != nil {
		log.Warn().Err(err).Msg("cancel algo orders before rebuild failed")
		return
	}
	tpID, slID, err := w.adapter.CreateTpSlOrder(ctx, exchange.TpSlRequest{
		Symbol: pos.Symbol, Side: closingSide(pos.Direction),
		TPQty: expectedTPQty, SLQty: pos.Quantity,
		TPTrigger: expectedTPTrigger, SLTrigger: expectedSLTrigger,
	})
	if err != nil {
		log.Error().Err(err).Msg("watchdog rebuild placement failed")
		return
	}
	w.coord.RebuildProtectiveOrders(pos.Symbol, tpID, slID)
	w.markRebuilt(pos.Symbol)
	log.Info().Msg("protective orders rebuilt")
}

func hasLivePosition(live []exchange.ExchangePosition, symbol string) bool {
	for _, p := range live {
		if p.Symbol == symbol && p.Quantity != 0 {
			return true
		}
	}
	return false
}

func withinQty(actual, expected, lot float64) bool {
	return math.Abs(actual-expected) <= lotTolerance*lot
}

func withinPrice(actual, expected, tick float64) bool {
	return math.Abs(actual-expected) <= tickTolerance*tick
}

func oppositeOf(d signal.Direction) signal.Direction {
	if d == signal.Short {
		return signal.Long
	}
	return signal.Short
}
