// Package order implements OrderCoordinator and OrderWatchdog: the
// per-symbol state machine that turns a signal into a submitted order,
// tracks it to a fill, places and reconciles protective TP/SL orders, and
// closes the position on a take-profit, stop-loss, or time-based exit.
//
// Grounded on the donor's ExecutionService (execution_service.go) for the
// submit/monitor/protect/close lifecycle and predator_engine.go's
// GlobalExposureGuard-adjacent position loop for the periodic-tick shape;
// restructured into the stricter IDLE->PENDING->OPEN->TP1_FILLED->CLOSED
// state machine this engine requires instead of the donor's
// goroutine-per-position GhostSession model.
package order

import (
	"time"

	"github.com/yjx-labs/swapscalp/risk"
	"github.com/yjx-labs/swapscalp/signal"
)

// State is a symbol's position in the order lifecycle.
type State string

const (
	Idle      State = "IDLE"
	Pending   State = "PENDING"
	Open      State = "OPEN"
	Tp1Filled State = "TP1_FILLED"
	Closed    State = "CLOSED"
	Canceled  State = "CANCELED"
)

// CloseReason names why a position was closed, for the audit trail.
type CloseReason string

const (
	ReasonTP1Hit        CloseReason = "TP1_HIT"
	ReasonTP2Hit        CloseReason = "TP2_HIT"
	ReasonSLHit         CloseReason = "SL_HIT"
	ReasonBreakeven     CloseReason = "BREAKEVEN_TIMEOUT"
	ReasonMaxTime       CloseReason = "MAX_TIME_TIMEOUT"
	ReasonExternalClose CloseReason = "EXTERNAL_CLOSE"
)

// PendingOrder is a submitted-but-unfilled entry. At most one exists per
// symbol at a time; owned exclusively by Coordinator.
type PendingOrder struct {
	Symbol          string
	ExchangeOrderID int64
	Direction       signal.Direction
	EntryPrice      float64
	TP1Price        float64
	TP2Price        float64
	SLPrice         float64
	Quantity        float64
	CreatedAt       time.Time
	Signal          signal.Signal
}

// Position is a live filled position. At most one exists per symbol at a
// time; owned exclusively by Coordinator (OrderWatchdog only reads it and
// issues remove/rebuild requests through the Coordinator's own methods).
type Position struct {
	Symbol     string
	Direction  signal.Direction
	EntryPrice float64
	Quantity   float64 // remaining, lot-rounded
	InitialQty float64
	Leverage   int
	TP1Price   float64
	TP2Price   float64
	SLPrice    float64
	// TPPrice is the fallback single-TP target used when the fill is too
	// small to split into a TP1/TP2 pair.
	TPPrice         float64
	OriginalTPPrice float64
	TP1Filled       bool
	TPReduced       bool
	// splitTP records whether the fill was large enough to split into a
	// TP1/TP2 pair; when false the position uses the single-TP fallback
	// path and TP1Price/TP1Filled are never consulted.
	splitTP bool
	// closing marks that a close request is already in flight for this
	// position, so a concurrent tick never double-submits a reduce-only
	// close; the row is dropped from the table once the close confirms.
	closing     bool
	EnteredAt   time.Time
	MainOrderID int64
	TPOrderID   int64
	SLOrderID   int64
	Signal      signal.Signal
}

// Counts groups the live open-position/pending-order tally. Coordinator
// passes the same three values to risk.Gate.SetOpenCounts as separate
// arguments every tick and does not build a Counts.
type Counts struct {
	OpenPositions int
	PendingOrders int
	ByDirection   map[risk.Direction]int
}
