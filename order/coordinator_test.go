package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yjx-labs/swapscalp/exchange"
	"github.com/yjx-labs/swapscalp/marketdata"
	"github.com/yjx-labs/swapscalp/risk"
	"github.com/yjx-labs/swapscalp/signal"
)

// fakeAdapter is a minimal, in-memory exchange.Adapter stand-in. Tests
// configure its behavior through the exported fields/funcs instead of
// hitting a real exchange — grounded on the donor's test doubles for
// ExecutionService, generalized to the narrower Adapter surface here.
type fakeAdapter struct {
	mu sync.Mutex

	balance  float64
	lot      float64
	tick     float64
	orders   map[int64]exchange.OrderResult
	nextID   int64
	algos    map[string][]exchange.AlgoOrder
	nextAlgo int64
	live     map[string]exchange.ExchangePosition
	prices   map[string]float64

	createOrderErr      error
	queryOrderErr       error
	cancelOrderErr      error
	createTpSlErr       error
	cancelAllAlgosErr   error
	getOpenAlgosErr     error
	getOpenPositionsErr error
	closeErr            error // returned by CreateOrder for reduce-only closes, to simulate ErrNoPosition

	createOrderCalls []exchange.CreateOrderRequest
	cancelCalls      []int64
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		balance: 10000,
		lot:     0.001,
		tick:    0.01,
		orders:  make(map[int64]exchange.OrderResult),
		algos:   make(map[string][]exchange.AlgoOrder),
		live:    make(map[string]exchange.ExchangePosition),
		prices:  make(map[string]float64),
	}
}

func (f *fakeAdapter) GetFundingAll(ctx context.Context) ([]marketdata.FundingRecord, error) { return nil, nil }
func (f *fakeAdapter) GetBookTickerAll(ctx context.Context) ([]marketdata.SpreadRecord, error) {
	return nil, nil
}
func (f *fakeAdapter) GetOpenInterest(ctx context.Context, symbol string) (marketdata.OpenInterest, error) {
	return marketdata.OpenInterest{}, nil
}

func (f *fakeAdapter) SubscribePublic(symbols []string, timeframes []string) {}
func (f *fakeAdapter) IsStreamConnected() bool                               { return true }
func (f *fakeAdapter) StreamFatal() <-chan error                             { return nil }
func (f *fakeAdapter) Shutdown()                                             {}

func (f *fakeAdapter) GetHistoricalCandles(ctx context.Context, symbol, tf string, limit int) ([]marketdata.Candle, error) {
	return nil, nil
}
func (f *fakeAdapter) GetAvailableBalance(ctx context.Context) (float64, error) { return f.balance, nil }
func (f *fakeAdapter) GetSymbolPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prices[symbol], nil
}
func (f *fakeAdapter) GetOpenPositions(ctx context.Context) ([]exchange.ExchangePosition, error) {
	if f.getOpenPositionsErr != nil {
		return nil, f.getOpenPositionsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]exchange.ExchangePosition, 0, len(f.live))
	for _, p := range f.live {
		out = append(out, p)
	}
	return out, nil
}
func (f *fakeAdapter) SetLeverage(ctx context.Context, symbol string, leverage int) error { return nil }

func (f *fakeAdapter) CreateOrder(ctx context.Context, req exchange.CreateOrderRequest) (exchange.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createOrderCalls = append(f.createOrderCalls, req)

	if req.ReduceOnly && f.closeErr != nil {
		return exchange.OrderResult{}, f.closeErr
	}
	if f.createOrderErr != nil {
		return exchange.OrderResult{}, f.createOrderErr
	}
	f.nextID++
	res := exchange.OrderResult{
		OrderID: f.nextID, Symbol: req.Symbol, Status: exchange.StatusNew,
	}
	if req.Type == exchange.TypeMarket {
		res.Status = exchange.StatusFilled
		res.FilledQty = req.Quantity
		fillPrice := f.prices[req.Symbol]
		if fillPrice <= 0 {
			fillPrice = req.Price
		}
		res.AvgFillPrice = fillPrice
	}
	f.orders[res.OrderID] = res
	return res, nil
}
func (f *fakeAdapter) QueryOrder(ctx context.Context, symbol string, orderID int64) (exchange.OrderResult, error) {
	if f.queryOrderErr != nil {
		return exchange.OrderResult{}, f.queryOrderErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.orders[orderID]
	if !ok {
		return exchange.OrderResult{}, exchange.ErrInvalid
	}
	return res, nil
}
func (f *fakeAdapter) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, orderID)
	if f.cancelOrderErr != nil {
		return f.cancelOrderErr
	}
	if res, ok := f.orders[orderID]; ok {
		res.Status = exchange.StatusCanceled
		f.orders[orderID] = res
	}
	return nil
}

func (f *fakeAdapter) CreateTpSlOrder(ctx context.Context, req exchange.TpSlRequest) (int64, int64, error) {
	if f.createTpSlErr != nil {
		return 0, 0, f.createTpSlErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextAlgo++
	tpID := f.nextAlgo
	f.nextAlgo++
	slID := f.nextAlgo
	f.algos[req.Symbol] = []exchange.AlgoOrder{
		{OrderID: tpID, Symbol: req.Symbol, Type: exchange.TypeTakeProfitMkt, Side: req.Side, Quantity: req.TPQty, TriggerPrice: req.TPTrigger},
		{OrderID: slID, Symbol: req.Symbol, Type: exchange.TypeStopMarket, Side: req.Side, Quantity: req.SLQty, TriggerPrice: req.SLTrigger},
	}
	return tpID, slID, nil
}
func (f *fakeAdapter) CancelAllAlgoOrders(ctx context.Context, symbol string) error {
	if f.cancelAllAlgosErr != nil {
		return f.cancelAllAlgosErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.algos, symbol)
	return nil
}
func (f *fakeAdapter) GetOpenAlgoOrders(ctx context.Context, symbol string) ([]exchange.AlgoOrder, error) {
	if f.getOpenAlgosErr != nil {
		return nil, f.getOpenAlgosErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exchange.AlgoOrder(nil), f.algos[symbol]...), nil
}

func (f *fakeAdapter) GetLotSizeInfo(ctx context.Context, symbol string) (float64, error) { return f.lot, nil }
func (f *fakeAdapter) GetTickSize(ctx context.Context, symbol string) (float64, error)    { return f.tick, nil }

// fakeAudit records every SignalEvent/PositionEvent it is asked to persist.
type fakeAudit struct {
	mu        sync.Mutex
	signals   []SignalEvent
	positions []PositionEvent
}

func (a *fakeAudit) RecordSignal(ctx context.Context, e SignalEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals = append(a.signals, e)
	return nil
}
func (a *fakeAudit) RecordPosition(ctx context.Context, e PositionEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.positions = append(a.positions, e)
	return nil
}
func (a *fakeAudit) positionEvents() []PositionEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]PositionEvent(nil), a.positions...)
}

func testConfig() Config {
	return Config{
		FixedMarginUSDT:    100,
		Leverage:           10,
		UnfillTimeout:      30 * time.Second,
		TpReduceTime:       5 * time.Minute,
		TpReduceRatio:      0.5,
		BreakevenTime:      10 * time.Minute,
		BreakevenMinProfit: 0.001,
		MaxHoldTime:        30 * time.Minute,
		TickInterval:       10 * time.Second,
	}
}

func testSignal(dir signal.Direction) signal.Signal {
	now := time.Now()
	if dir == signal.Long {
		return signal.Signal{
			ID: "sig-1", Symbol: "BTCUSDT", Direction: signal.Long, Strength: 0.8,
			CurrentPrice: 100, EntryPrice: 100, TP1Price: 101, TP2Price: 102, SLPrice: 99,
			ATR: 1, CreatedAt: now, ExpiresAt: now.Add(time.Minute),
		}
	}
	return signal.Signal{
		ID: "sig-2", Symbol: "ETHUSDT", Direction: signal.Short, Strength: 0.8,
		CurrentPrice: 100, EntryPrice: 100, TP1Price: 99, TP2Price: 98, SLPrice: 101,
		ATR: 1, CreatedAt: now, ExpiresAt: now.Add(time.Minute),
	}
}

func newTestCoordinator(t *testing.T, adapter exchange.Adapter, audit AuditSink) (*Coordinator, *signal.ActiveSignals) {
	t.Helper()
	marks := marketdata.NewMarkPrices()
	signals := signal.NewActiveSignals()
	gate := risk.NewGate(risk.Config{MaxPositions: 5, MaxSameDirection: 5, MaxDailyLoss: 1, ConsecutiveLossLimit: 10, CooldownMinutes: 1})
	log := zerolog.Nop()
	return NewCoordinator(log, testConfig(), adapter, marks, signals, gate, audit), signals
}

// TestCleanLongLifecycle covers S1: a LONG signal is submitted, fills, TP1
// partially closes at half size, and TP2 closes the remainder with a
// positive PnL recorded against the risk ledger.
func TestCleanLongLifecycle(t *testing.T) {
	adapter := newFakeAdapter()
	audit := &fakeAudit{}
	coord, signals := newTestCoordinator(t, adapter, audit)
	ctx := context.Background()

	sig := testSignal(signal.Long)
	signals.Replace([]signal.Signal{sig})

	coord.processNewSignals(ctx)
	require.Len(t, coord.pendingSnapshot(), 1)
	require.Len(t, adapter.createOrderCalls, 1)
	assert.Equal(t, exchange.Buy, adapter.createOrderCalls[0].Side)

	// Simulate the limit order filling before the next tick observes it.
	po := coord.pendingSnapshot()[0]
	filledQty := exchange.RoundToLot(coord.cfg.FixedMarginUSDT*float64(coord.cfg.Leverage)/sig.EntryPrice, adapter.lot)
	adapter.mu.Lock()
	res := adapter.orders[po.ExchangeOrderID]
	res.Status = exchange.StatusFilled
	res.FilledQty = filledQty
	res.AvgFillPrice = sig.EntryPrice
	adapter.orders[po.ExchangeOrderID] = res
	adapter.mu.Unlock()

	coord.managePendingOrders(ctx)
	require.Empty(t, coord.pendingSnapshot())
	positions := coord.positionSnapshot()
	require.Len(t, positions, 1)
	pos := positions[0]
	assert.True(t, pos.splitTP)
	assert.Equal(t, filledQty, pos.Quantity)

	// Current price hits TP1: half the position closes.
	adapter.live["BTCUSDT"] = exchange.ExchangePosition{Symbol: "BTCUSDT", Quantity: filledQty, EntryPrice: 100}
	adapter.prices["BTCUSDT"] = sig.TP1Price + 0.01
	coord.managePositions(ctx)

	positions = coord.positionSnapshot()
	require.Len(t, positions, 1)
	assert.True(t, positions[0].TP1Filled)
	assert.InDelta(t, filledQty/2, positions[0].Quantity, 1e-9)

	// Current price hits TP2: the remainder closes with a positive PnL.
	adapter.live["BTCUSDT"] = exchange.ExchangePosition{Symbol: "BTCUSDT", Quantity: positions[0].Quantity, EntryPrice: 100}
	adapter.prices["BTCUSDT"] = sig.TP2Price + 0.01
	coord.managePositions(ctx)

	require.Empty(t, coord.positionSnapshot())
	events := audit.positionEvents()
	require.GreaterOrEqual(t, len(events), 2)
	last := events[len(events)-1]
	assert.Equal(t, "CLOSED", last.Status)
	assert.Equal(t, string(ReasonTP2Hit), last.CloseReason)
	assert.Greater(t, last.PnlPct, 0.0)
}

// TestPendingOrderTimeoutCancels covers S3: a limit order left unfilled past
// the configured timeout is canceled and audited, never promoted to a
// Position.
func TestPendingOrderTimeoutCancels(t *testing.T) {
	adapter := newFakeAdapter()
	audit := &fakeAudit{}
	coord, signals := newTestCoordinator(t, adapter, audit)
	coord.cfg.UnfillTimeout = 1 * time.Millisecond
	ctx := context.Background()

	sig := testSignal(signal.Long)
	signals.Replace([]signal.Signal{sig})
	coord.processNewSignals(ctx)
	require.Len(t, coord.pendingSnapshot(), 1)

	time.Sleep(5 * time.Millisecond)
	coord.managePendingOrders(ctx)

	assert.Empty(t, coord.pendingSnapshot())
	assert.Empty(t, coord.positionSnapshot())
	require.Len(t, adapter.cancelCalls, 1)

	events := audit.signals
	require.NotEmpty(t, events)
	assert.Equal(t, "CANCELED", events[len(events)-1].Status)
}

// TestExternalCloseSkipsRiskRecording covers S6: when the exchange reports
// ErrNoPosition on a close attempt, the position is dropped from the table
// and audited as EXTERNAL_CLOSE without touching the risk ledger.
func TestExternalCloseSkipsRiskRecording(t *testing.T) {
	adapter := newFakeAdapter()
	audit := &fakeAudit{}
	coord, _ := newTestCoordinator(t, adapter, audit)
	ctx := context.Background()

	pos := &Position{
		Symbol: "BTCUSDT", Direction: signal.Long, EntryPrice: 100, Quantity: 0.01, InitialQty: 0.01,
		TPPrice: 101, SLPrice: 99, TP2Price: 101, EnteredAt: time.Now(),
	}
	coord.mu.Lock()
	coord.position["BTCUSDT"] = pos
	coord.mu.Unlock()

	before := coord.risk.Snapshot()
	adapter.closeErr = exchange.ErrNoPosition
	coord.closeFull(ctx, pos, ReasonSLHit)
	after := coord.risk.Snapshot()

	assert.Equal(t, before.TodayTradeCount, after.TodayTradeCount)
	assert.Empty(t, coord.positionSnapshot())

	events := audit.positionEvents()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, string(ReasonExternalClose), last.CloseReason)
}

// TestClearDropsPendingAndPositionTables covers the control plane's
// StopTrading path: Clear must empty both tables in memory without touching
// the exchange (fakeAdapter records no cancel/close calls).
func TestClearDropsPendingAndPositionTables(t *testing.T) {
	adapter := newFakeAdapter()
	audit := &fakeAudit{}
	coord, signals := newTestCoordinator(t, adapter, audit)
	ctx := context.Background()

	signals.Replace([]signal.Signal{testSignal(signal.Long)})
	coord.processNewSignals(ctx)
	require.Len(t, coord.pendingSnapshot(), 1)

	coord.Clear()

	assert.Empty(t, coord.pendingSnapshot())
	assert.Empty(t, coord.positionSnapshot())
	assert.Empty(t, adapter.cancelCalls)
}

func TestClampSLMinimumTickDistance(t *testing.T) {
	// mark=100, tick=1: 0.999*mark=99.9 but 2*tick=2 below mark is further,
	// so the clamp must fall back to mark-2.
	got := clampSL(signal.Long, 99.95, 100, 1)
	assert.Equal(t, 98.0, got)

	got = clampSL(signal.Short, 100.05, 100, 1)
	assert.Equal(t, 102.0, got)
}
