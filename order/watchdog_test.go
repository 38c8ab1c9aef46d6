package order

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yjx-labs/swapscalp/exchange"
	"github.com/yjx-labs/swapscalp/signal"
)

func seedOpenPosition(coord *Coordinator, pos *Position) {
	coord.mu.Lock()
	coord.position[pos.Symbol] = pos
	coord.mu.Unlock()
}

// TestWatchdogRebuildsMisalignedProtectiveOrders covers S5: a mismatched
// algo-order pair (wrong trigger price) is canceled and replaced, and the
// Coordinator's tracked order IDs are updated to the rebuilt pair.
func TestWatchdogRebuildsMisalignedProtectiveOrders(t *testing.T) {
	adapter := newFakeAdapter()
	coord, _ := newTestCoordinator(t, adapter, &fakeAudit{})
	ctx := context.Background()

	pos := &Position{
		Symbol: "BTCUSDT", Direction: signal.Long, EntryPrice: 100, Quantity: 1,
		InitialQty: 1, TP1Price: 101, TP2Price: 102, SLPrice: 99, splitTP: true,
		TP1Filled: true, TPOrderID: 1, SLOrderID: 2, EnteredAt: time.Now(),
	}
	seedOpenPosition(coord, pos)
	adapter.live["BTCUSDT"] = exchange.ExchangePosition{Symbol: "BTCUSDT", Quantity: 1, EntryPrice: 100}
	adapter.nextAlgo = 10 // so a rebuilt pair gets IDs distinct from the seeded 1/2
	// Misaligned: SL trigger sits far from the expected clamp.
	adapter.algos["BTCUSDT"] = []exchange.AlgoOrder{
		{OrderID: 1, Symbol: "BTCUSDT", Type: exchange.TypeTakeProfitMkt, Quantity: 1, TriggerPrice: 102},
		{OrderID: 2, Symbol: "BTCUSDT", Type: exchange.TypeStopMarket, Quantity: 1, TriggerPrice: 90},
	}

	wd := NewWatchdog(zerolog.Nop(), coord, adapter, coord.marks, 15*time.Second, 15*time.Second)
	wd.tickSafely(ctx)

	_, positions := coord.Snapshot()
	require.Len(t, positions, 1)
	assert.NotEqual(t, int64(1), positions[0].TPOrderID)
	assert.NotEqual(t, int64(2), positions[0].SLOrderID)

	algos, _ := adapter.GetOpenAlgoOrders(ctx, "BTCUSDT")
	require.Len(t, algos, 2)
}

// TestWatchdogNoOpWhenAligned covers S5's converse: protective orders that
// already match the expected quantity/trigger are left untouched.
func TestWatchdogNoOpWhenAligned(t *testing.T) {
	adapter := newFakeAdapter()
	coord, _ := newTestCoordinator(t, adapter, &fakeAudit{})
	ctx := context.Background()

	pos := &Position{
		Symbol: "BTCUSDT", Direction: signal.Long, EntryPrice: 100, Quantity: 1,
		InitialQty: 1, TP1Price: 101, TP2Price: 102, SLPrice: 99, splitTP: true,
		TP1Filled: true, TPOrderID: 1, SLOrderID: 2, EnteredAt: time.Now(),
	}
	seedOpenPosition(coord, pos)
	adapter.live["BTCUSDT"] = exchange.ExchangePosition{Symbol: "BTCUSDT", Quantity: 1, EntryPrice: 100}
	adapter.algos["BTCUSDT"] = []exchange.AlgoOrder{
		{OrderID: 1, Symbol: "BTCUSDT", Type: exchange.TypeTakeProfitMkt, Quantity: 1, TriggerPrice: 102},
		{OrderID: 2, Symbol: "BTCUSDT", Type: exchange.TypeStopMarket, Quantity: 1, TriggerPrice: 99},
	}

	wd := NewWatchdog(zerolog.Nop(), coord, adapter, coord.marks, 15*time.Second, 15*time.Second)
	wd.tickSafely(ctx)

	_, positions := coord.Snapshot()
	require.Len(t, positions, 1)
	assert.Equal(t, int64(1), positions[0].TPOrderID)
	assert.Equal(t, int64(2), positions[0].SLOrderID)
}

// TestWatchdogClearsGoneLivePosition covers the reconciliation path where
// the exchange no longer reports the position at all: the local table row
// and any residual algo orders are dropped.
func TestWatchdogClearsGoneLivePosition(t *testing.T) {
	adapter := newFakeAdapter()
	coord, _ := newTestCoordinator(t, adapter, &fakeAudit{})
	ctx := context.Background()

	pos := &Position{Symbol: "BTCUSDT", Direction: signal.Long, EntryPrice: 100, Quantity: 1, InitialQty: 1, EnteredAt: time.Now()}
	seedOpenPosition(coord, pos)
	// adapter.live intentionally left empty: exchange reports no position.

	wd := NewWatchdog(zerolog.Nop(), coord, adapter, coord.marks, 15*time.Second, 15*time.Second)
	wd.tickSafely(ctx)

	_, positions := coord.Snapshot()
	assert.Empty(t, positions)
}
