package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yjx-labs/swapscalp/exchange"
	"github.com/yjx-labs/swapscalp/marketdata"
	"github.com/yjx-labs/swapscalp/risk"
	"github.com/yjx-labs/swapscalp/signal"
)

// Config carries the Coordinator's tunables, pulled out of the process-wide
// config.Config so this package never imports it directly.
type Config struct {
	FixedMarginUSDT    float64
	Leverage           int
	UnfillTimeout      time.Duration
	TpReduceTime       time.Duration
	TpReduceRatio      float64
	BreakevenTime      time.Duration
	BreakevenMinProfit float64
	MaxHoldTime        time.Duration
	TickInterval       time.Duration
}

// AuditSink persists signal/position lifecycle rows. store.AuditStore is
// the reference implementation; Coordinator only depends on this narrow
// interface.
type AuditSink interface {
	RecordSignal(ctx context.Context, e SignalEvent) error
	RecordPosition(ctx context.Context, e PositionEvent) error
}

// Coordinator is the central per-symbol order lifecycle state machine. It
// owns the PendingOrder and Position tables exclusively; OrderWatchdog only
// reads snapshots and mutates through Coordinator's own exported methods.
type Coordinator struct {
	log zerolog.Logger
	cfg Config

	adapter exchange.Adapter
	marks   *marketdata.MarkPrices
	signals *signal.ActiveSignals
	risk    *risk.Gate
	audit   AuditSink

	events chan Event

	mu       sync.Mutex
	pending  map[string]*PendingOrder
	position map[string]*Position
}

// NewCoordinator wires every collaborator the lifecycle needs.
func NewCoordinator(log zerolog.Logger, cfg Config, adapter exchange.Adapter, marks *marketdata.MarkPrices, signals *signal.ActiveSignals, gate *risk.Gate, audit AuditSink) *Coordinator {
	return &Coordinator{
		log:      log,
		cfg:      cfg,
		adapter:  adapter,
		marks:    marks,
		signals:  signals,
		risk:     gate,
		audit:    audit,
		events:   make(chan Event, 256),
		pending:  make(map[string]*PendingOrder),
		position: make(map[string]*Position),
	}
}

// Events exposes the outbound signal/position broadcast; a collaborator
// (push socket, Telegram sink) ranges over this channel. Sends are
// non-blocking — a slow or absent consumer never stalls a tick.
func (c *Coordinator) Events() <-chan Event { return c.events }

func (c *Coordinator) emit(e Event) {
	select {
	case c.events <- e:
	default:
		c.log.Warn().Msg("event channel full, dropping outbound event")
	}
}

// Run ticks once per cfg.TickInterval until ctx is canceled. Each tick runs
// processNewSignals, managePendingOrders, managePositions in order, guarded
// against panics so one symbol's failure cannot kill the loop.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("recovered panic in order tick")
		}
	}()
	c.refreshRiskCounts()
	c.processNewSignals(ctx)
	c.managePendingOrders(ctx)
	c.managePositions(ctx)
}

func (c *Coordinator) refreshRiskCounts() {
	c.mu.Lock()
	byDir := make(map[risk.Direction]int, 2)
	for _, p := range c.position {
		byDir[toRiskDirection(p.Direction)]++
	}
	open, pend := len(c.position), len(c.pending)
	c.mu.Unlock()
	c.risk.SetOpenCounts(open, pend, byDir)
}

func toRiskDirection(d signal.Direction) risk.Direction {
	if d == signal.Short {
		return risk.Short
	}
	return risk.Long
}

func closingSide(d signal.Direction) exchange.Side {
	if d == signal.Short {
		return exchange.Buy
	}
	return exchange.Sell
}

func entrySide(d signal.Direction) exchange.Side {
	if d == signal.Short {
		return exchange.Sell
	}
	return exchange.Buy
}

// hasOpenSlot reports whether symbol has neither a pending order nor an
// open position — the "at most one of each per symbol" invariant.
func (c *Coordinator) hasOpenSlot(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, pend := c.pending[symbol]
	_, pos := c.position[symbol]
	return !pend && !pos
}

// processNewSignals consumes this tick's batch of unconsumed signals,
// highest strength first (ActiveSignals.Take already sorts and dedups),
// and submits a post-only-biased limit entry for each that clears risk and
// balance checks.
func (c *Coordinator) processNewSignals(ctx context.Context) {
	for _, sig := range c.signals.Take() {
		c.processOneSignal(ctx, sig)
	}
}

func (c *Coordinator) processOneSignal(ctx context.Context, sig signal.Signal) {
	log := c.log.With().Str("symbol", sig.Symbol).Str("signal_id", sig.ID).Logger()

	if !c.hasOpenSlot(sig.Symbol) {
		c.recordSignal(ctx, sig, "SKIPPED")
		return
	}

	dir := toRiskDirection(sig.Direction)
	if allowed, reason := c.risk.CanEnter(dir); !allowed {
		log.Info().Str("reason", string(reason)).Msg("signal rejected by risk gate")
		c.recordSignal(ctx, sig, "SKIPPED")
		return
	}

	balance, err := c.adapter.GetAvailableBalance(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("balance check failed, skipping signal")
		c.recordSignal(ctx, sig, "SKIPPED")
		return
	}
	if balance < c.cfg.FixedMarginUSDT {
		log.Info().Float64("balance", balance).Msg("insufficient balance for signal")
		c.recordSignal(ctx, sig, "SKIPPED")
		return
	}

	lot, err := c.adapter.GetLotSizeInfo(ctx, sig.Symbol)
	if err != nil {
		lot = 0.001
	}
	quantity := exchange.RoundToLot((c.cfg.FixedMarginUSDT*float64(c.cfg.Leverage))/sig.EntryPrice, lot)
	if quantity <= 0 {
		log.Warn().Msg("rounded quantity is zero, skipping signal")
		c.recordSignal(ctx, sig, "FAILED")
		return
	}

	if err := c.adapter.SetLeverage(ctx, sig.Symbol, c.cfg.Leverage); err != nil && !errors.Is(err, exchange.ErrInvalid) {
		log.Warn().Err(err).Msg("set leverage failed")
	}

	req := exchange.CreateOrderRequest{
		Symbol:     sig.Symbol,
		Side:       entrySide(sig.Direction),
		Type:       exchange.TypeLimit,
		Quantity:   quantity,
		Price:      sig.EntryPrice,
		ReduceOnly: false,
		TIF:        exchange.GTC,
	}
	res, err := c.adapter.CreateOrder(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("order submission failed")
		c.recordSignal(ctx, sig, "FAILED")
		return
	}

	po := &PendingOrder{
		Symbol:          sig.Symbol,
		ExchangeOrderID: res.OrderID,
		Direction:       sig.Direction,
		EntryPrice:      sig.EntryPrice,
		TP1Price:        sig.TP1Price,
		TP2Price:        sig.TP2Price,
		SLPrice:         sig.SLPrice,
		Quantity:        quantity,
		CreatedAt:       time.Now(),
		Signal:          sig,
	}
	c.mu.Lock()
	c.pending[sig.Symbol] = po
	c.mu.Unlock()

	c.recordSignal(ctx, sig, "PENDING")
	log.Info().Int64("order_id", res.OrderID).Float64("qty", quantity).Msg("entry submitted")
}

func (c *Coordinator) recordSignal(ctx context.Context, sig signal.Signal, status string) {
	e := SignalEvent{
		ID: sig.ID, Symbol: sig.Symbol, Direction: string(sig.Direction),
		EntryPrice: sig.EntryPrice, TP1Price: sig.TP1Price, TP2Price: sig.TP2Price,
		SLPrice: sig.SLPrice, Strength: sig.Strength, Status: status,
	}
	if c.audit != nil {
		if err := c.audit.RecordSignal(ctx, e); err != nil {
			c.log.Warn().Err(err).Msg("audit record signal failed")
		}
	}
	c.emit(Event{Kind: EventSignalKind, Signal: &e})
}

// managePendingOrders polls every in-flight entry order, draining terminal
// states and canceling anything that has sat unfilled past the timeout.
func (c *Coordinator) managePendingOrders(ctx context.Context) {
	for _, po := range c.pendingSnapshot() {
		c.manageOnePending(ctx, po)
	}
}

func (c *Coordinator) pendingSnapshot() []*PendingOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*PendingOrder, 0, len(c.pending))
	for _, po := range c.pending {
		out = append(out, po)
	}
	return out
}

func (c *Coordinator) removePending(symbol string) {
	c.mu.Lock()
	delete(c.pending, symbol)
	c.mu.Unlock()
}

func (c *Coordinator) manageOnePending(ctx context.Context, po *PendingOrder) {
	log := c.log.With().Str("symbol", po.Symbol).Logger()

	res, err := c.adapter.QueryOrder(ctx, po.Symbol, po.ExchangeOrderID)
	if err != nil {
		log.Warn().Err(err).Msg("pending order query failed")
		return
	}

	switch res.Status {
	case exchange.StatusFilled:
		c.removePending(po.Symbol)
		c.onOrderFilled(ctx, po, res.AvgFillPrice, res.FilledQty)
		return
	case exchange.StatusCanceled, exchange.StatusExpired, exchange.StatusRejected:
		c.removePending(po.Symbol)
		c.recordSignal(ctx, po.Signal, "CANCELED")
		return
	}

	if time.Since(po.CreatedAt) > c.cfg.UnfillTimeout {
		if err := c.adapter.CancelOrder(ctx, po.Symbol, po.ExchangeOrderID); err != nil {
			log.Warn().Err(err).Msg("pending order cancel failed")
			return
		}
		c.removePending(po.Symbol)
		c.recordSignal(ctx, po.Signal, "CANCELED")
		log.Info().Msg("pending order timed out, canceled")
	}
}

// clampSL enforces the SL-clamp-to-mark rule, with a minimum distance of
// 2x tick in addition to the 0.999xmark clamp, whichever is further from
// mark — so a volatile mark price cannot produce an immediately-triggering
// stop.
func clampSL(dir signal.Direction, slPrice, mark, tick float64) float64 {
	if mark <= 0 {
		return slPrice
	}
	minDist := 2 * tick
	switch dir {
	case signal.Long:
		clamped := 0.999 * mark
		if mark-minDist < clamped {
			clamped = mark - minDist
		}
		if slPrice >= mark || slPrice >= clamped {
			return clamped
		}
	case signal.Short:
		clamped := 1.001 * mark
		if mark+minDist > clamped {
			clamped = mark + minDist
		}
		if slPrice <= mark || slPrice <= clamped {
			return clamped
		}
	}
	return slPrice
}

func (c *Coordinator) onOrderFilled(ctx context.Context, po *PendingOrder, filledPrice, filledQty float64) {
	log := c.log.With().Str("symbol", po.Symbol).Logger()
	if filledQty <= 0 {
		filledQty = po.Quantity
	}
	if filledPrice <= 0 {
		filledPrice = po.EntryPrice
	}

	lot, err := c.adapter.GetLotSizeInfo(ctx, po.Symbol)
	if err != nil {
		lot = 0.001
	}
	tick, err := c.adapter.GetTickSize(ctx, po.Symbol)
	if err != nil {
		tick = 0.01
	}
	mark, _ := c.marks.Get(po.Symbol)
	if mark <= 0 {
		mark = filledPrice
	}
	slClamped := clampSL(po.Direction, po.SLPrice, mark, tick)

	tp1Qty := exchange.RoundToLot(filledQty*0.5, lot)
	pos := &Position{
		Symbol:          po.Symbol,
		Direction:       po.Direction,
		EntryPrice:      filledPrice,
		Quantity:        filledQty,
		InitialQty:      filledQty,
		Leverage:        c.cfg.Leverage,
		TP1Price:        po.TP1Price,
		TP2Price:        po.TP2Price,
		SLPrice:         slClamped,
		TPPrice:         po.TP1Price,
		OriginalTPPrice: po.TP1Price,
		EnteredAt:       time.Now(),
		MainOrderID:     po.ExchangeOrderID,
		Signal:          po.Signal,
	}

	side := closingSide(po.Direction)
	var tpID, slID int64
	if tp1Qty < lot {
		// Fill too small to split into TP1/TP2 — fall back to a single
		// TP/SL covering the full quantity.
		tpID, slID, err = c.adapter.CreateTpSlOrder(ctx, exchange.TpSlRequest{
			Symbol: po.Symbol, Side: side, TPQty: filledQty, SLQty: filledQty,
			TPTrigger: po.TP1Price, SLTrigger: slClamped,
		})
	} else {
		pos.splitTP = true
		tpID, slID, err = c.adapter.CreateTpSlOrder(ctx, exchange.TpSlRequest{
			Symbol: po.Symbol, Side: side, TPQty: tp1Qty, SLQty: filledQty,
			TPTrigger: po.TP1Price, SLTrigger: slClamped,
		})
	}
	if err != nil {
		log.Error().Err(err).Msg("protective TP/SL placement failed after fill")
	}
	pos.TPOrderID, pos.SLOrderID = tpID, slID

	c.mu.Lock()
	c.position[po.Symbol] = pos
	c.mu.Unlock()

	c.recordPosition(ctx, pos, "OPEN", "", 0)
	log.Info().Float64("entry", filledPrice).Float64("qty", filledQty).Msg("position opened")
}

func (c *Coordinator) recordPosition(ctx context.Context, pos *Position, status string, reason CloseReason, pnlPct float64) {
	e := PositionEvent{
		Symbol: pos.Symbol, Side: string(pos.Direction), EntryPrice: pos.EntryPrice,
		Quantity: pos.Quantity, Leverage: pos.Leverage, TPPrice: pos.activeTPPrice(),
		SLPrice: pos.SLPrice, Status: status, CloseReason: string(reason), PnlPct: pnlPct,
	}
	if c.audit != nil {
		if err := c.audit.RecordPosition(ctx, e); err != nil {
			c.log.Warn().Err(err).Msg("audit record position failed")
		}
	}
	c.emit(Event{Kind: EventPositionKind, Position: &e})
}

func (p *Position) activeTPPrice() float64 {
	if !p.splitTP {
		return p.TPPrice
	}
	if p.TP1Filled {
		return p.TP2Price
	}
	return p.TP1Price
}

func pnlPct(dir signal.Direction, entry, price float64) float64 {
	if entry == 0 {
		return 0
	}
	if dir == signal.Short {
		return (entry - price) / entry
	}
	return (price - entry) / entry
}

func hitsLevel(dir signal.Direction, price, level float64) bool {
	if dir == signal.Short {
		return price <= level
	}
	return price >= level
}

// managePositions evaluates TP1/TP2/SL levels and the time-based exits for
// every open position.
func (c *Coordinator) managePositions(ctx context.Context) {
	for _, pos := range c.positionSnapshot() {
		c.manageOnePosition(ctx, pos)
	}
}

func (c *Coordinator) positionSnapshot() []*Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Position, 0, len(c.position))
	for _, p := range c.position {
		out = append(out, p)
	}
	return out
}

func (c *Coordinator) manageOnePosition(ctx context.Context, pos *Position) {
	if pos.closing {
		return
	}
	price, err := c.adapter.GetSymbolPrice(ctx, pos.Symbol)
	if err != nil {
		c.log.Warn().Str("symbol", pos.Symbol).Err(err).Msg("price fetch failed")
		return
	}
	pct := pnlPct(pos.Direction, pos.EntryPrice, price)

	if pos.splitTP && !pos.TP1Filled && hitsLevel(pos.Direction, price, pos.TP1Price) {
		c.partialClose(ctx, pos, 0.5, ReasonTP1Hit)
		return
	}
	tpTarget := pos.TP2Price
	tpReason := ReasonTP2Hit
	if !pos.splitTP {
		tpTarget = pos.TPPrice
		tpReason = ReasonTP1Hit
	}
	if (pos.TP1Filled || !pos.splitTP) && hitsLevel(pos.Direction, price, tpTarget) {
		c.closeFull(ctx, pos, tpReason)
		return
	}

	elapsed := time.Since(pos.EnteredAt)
	if elapsed >= c.cfg.TpReduceTime && !pos.TPReduced {
		c.reduceTP(ctx, pos)
	}
	if elapsed >= c.cfg.BreakevenTime && pct >= c.cfg.BreakevenMinProfit {
		c.closeFull(ctx, pos, ReasonBreakeven)
		return
	}
	if elapsed >= c.cfg.MaxHoldTime && pct >= 0 {
		c.closeFull(ctx, pos, ReasonMaxTime)
	}
}

func (c *Coordinator) reduceTP(ctx context.Context, pos *Position) {
	originalDist := abs(pos.OriginalTPPrice - pos.EntryPrice)
	reducedDist := originalDist * c.cfg.TpReduceRatio
	var newTP float64
	if pos.Direction == signal.Short {
		newTP = pos.EntryPrice - reducedDist
	} else {
		newTP = pos.EntryPrice + reducedDist
	}

	if err := c.adapter.CancelAllAlgoOrders(ctx, pos.Symbol); err != nil {
		c.log.Warn().Str("symbol", pos.Symbol).Err(err).Msg("cancel algo orders for TP reduce failed")
		return
	}
	qty := pos.Quantity
	if pos.splitTP && !pos.TP1Filled {
		if lot, err := c.adapter.GetLotSizeInfo(ctx, pos.Symbol); err == nil {
			qty = exchange.RoundToLot(pos.Quantity*0.5, lot)
		}
	}
	tpID, slID, err := c.adapter.CreateTpSlOrder(ctx, exchange.TpSlRequest{
		Symbol: pos.Symbol, Side: closingSide(pos.Direction),
		TPQty: qty, SLQty: pos.Quantity, TPTrigger: newTP, SLTrigger: pos.SLPrice,
	})
	if err != nil {
		c.log.Warn().Str("symbol", pos.Symbol).Err(err).Msg("TP reduce placement failed")
		return
	}
	if pos.splitTP && !pos.TP1Filled {
		pos.TP1Price = newTP
	} else {
		pos.TP2Price = newTP
		pos.TPPrice = newTP
	}
	pos.TPOrderID, pos.SLOrderID = tpID, slID
	pos.TPReduced = true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// partialClose submits a reduce-only market order for ratio of the
// position and, on success, places a fresh TP2+SL for the residual.
func (c *Coordinator) partialClose(ctx context.Context, pos *Position, ratio float64, reason CloseReason) {
	log := c.log.With().Str("symbol", pos.Symbol).Logger()

	if err := c.adapter.CancelAllAlgoOrders(ctx, pos.Symbol); err != nil {
		log.Warn().Err(err).Msg("cancel algo orders before partial close failed")
	}

	lot, err := c.adapter.GetLotSizeInfo(ctx, pos.Symbol)
	if err != nil {
		lot = 0.001
	}
	qty := exchange.RoundToLot(pos.Quantity*ratio, lot)
	if qty <= 0 {
		return
	}

	req := exchange.CreateOrderRequest{Symbol: pos.Symbol, Side: closingSide(pos.Direction), Type: exchange.TypeMarket, Quantity: qty, ReduceOnly: true}
	_, err = c.adapter.CreateOrder(ctx, req)
	if err != nil {
		if errors.Is(err, exchange.ErrNoPosition) {
			c.externalClose(ctx, pos)
			return
		}
		log.Warn().Err(err).Msg("partial close order failed")
		return
	}

	pos.Quantity -= qty
	pos.TP1Filled = true

	if pos.Quantity >= lot {
		tick, err := c.adapter.GetTickSize(ctx, pos.Symbol)
		if err != nil {
			tick = 0.01
		}
		mark, _ := c.marks.Get(pos.Symbol)
		if mark <= 0 {
			mark = pos.EntryPrice
		}
		slClamped := clampSL(pos.Direction, pos.SLPrice, mark, tick)
		tpID, slID, err := c.adapter.CreateTpSlOrder(ctx, exchange.TpSlRequest{
			Symbol: pos.Symbol, Side: closingSide(pos.Direction),
			TPQty: pos.Quantity, SLQty: pos.Quantity, TPTrigger: pos.TP2Price, SLTrigger: slClamped,
		})
		if err != nil {
			log.Error().Err(err).Msg("TP2/SL placement for residual failed")
		}
		pos.SLPrice = slClamped
		pos.TPOrderID, pos.SLOrderID = tpID, slID
	}

	log.Info().Str("reason", string(reason)).Float64("closed_qty", qty).Msg("partial close executed")
}

// closeFull submits a reduce-only market order for the full remaining
// quantity and removes the position on success.
func (c *Coordinator) closeFull(ctx context.Context, pos *Position, reason CloseReason) {
	log := c.log.With().Str("symbol", pos.Symbol).Logger()
	pos.closing = true

	if err := c.adapter.CancelAllAlgoOrders(ctx, pos.Symbol); err != nil {
		log.Warn().Err(err).Msg("cancel algo orders before close failed")
	}

	req := exchange.CreateOrderRequest{Symbol: pos.Symbol, Side: closingSide(pos.Direction), Type: exchange.TypeMarket, Quantity: pos.Quantity, ReduceOnly: true}
	res, err := c.adapter.CreateOrder(ctx, req)
	if err != nil {
		if errors.Is(err, exchange.ErrNoPosition) {
			c.externalClose(ctx, pos)
			return
		}
		log.Warn().Err(err).Msg("close order failed, will retry next tick")
		pos.closing = false
		return
	}

	closePrice := res.AvgFillPrice
	if closePrice <= 0 {
		closePrice = pos.EntryPrice
	}
	pct := pnlPct(pos.Direction, pos.EntryPrice, closePrice)
	c.risk.RecordPnl(pct)

	c.mu.Lock()
	delete(c.position, pos.Symbol)
	c.mu.Unlock()

	c.recordPosition(ctx, pos, "CLOSED", reason, pct)
	log.Info().Str("reason", string(reason)).Float64("pnl_pct", pct).Msg("position closed")
}

// externalClose handles the exchange reporting "no position" where the
// Coordinator still believes one is open: the close already happened
// outside this process (e.g. the exchange-side SL fired). recordPnl is
// deliberately not invoked — the realized PnL is unknown in this path.
func (c *Coordinator) externalClose(ctx context.Context, pos *Position) {
	c.mu.Lock()
	delete(c.position, pos.Symbol)
	c.mu.Unlock()

	c.recordPosition(ctx, pos, "CLOSED", ReasonExternalClose, 0)
	c.log.Info().Str("symbol", pos.Symbol).Msg("position closed externally, table reconciled")
}

// Snapshot returns a defensive copy of the live pending/position tables,
// for OrderWatchdog and status reporting.
func (c *Coordinator) Snapshot() ([]PendingOrder, []Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pend := make([]PendingOrder, 0, len(c.pending))
	for _, p := range c.pending {
		pend = append(pend, *p)
	}
	pos := make([]Position, 0, len(c.position))
	for _, p := range c.position {
		pos = append(pos, *p)
	}
	return pend, pos
}

// RemovePositionIfGone drops symbol's Position from the table if the
// exchange reports it no longer exists. Called by OrderWatchdog; guarded
// by the same lock as every other mutation.
func (c *Coordinator) RemovePositionIfGone(ctx context.Context, symbol string) {
	c.mu.Lock()
	pos, ok := c.position[symbol]
	if ok {
		delete(c.position, symbol)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	c.recordPosition(ctx, pos, "CLOSED", ReasonExternalClose, 0)
}

// RebuildProtectiveOrders replaces symbol's tracked TP/SL order IDs after
// OrderWatchdog places a fresh pair.
func (c *Coordinator) RebuildProtectiveOrders(symbol string, tpID, slID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pos, ok := c.position[symbol]; ok {
		pos.TPOrderID, pos.SLOrderID = tpID, slID
	}
}

// HasPendingOrder reports whether symbol currently has an in-flight entry
// order — OrderWatchdog skips reconciliation while one exists.
func (c *Coordinator) HasPendingOrder(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[symbol]
	return ok
}

// Clear drops every in-memory Pending/Position row without touching
// exchange-side state. Called by the control plane on StopTrading, per
// Open Question (b): positions and their protective orders stay on the
// exchange across a restart. The watchdog audits only rows in this table,
// so those positions are not re-adopted on the next StartTrading.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = make(map[string]*PendingOrder)
	c.position = make(map[string]*Position)
}
