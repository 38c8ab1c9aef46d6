// Package strategy defines the pluggable signal-generation interface that
// lets OrderCoordinator intake signals from more than one strategy —
// the cascade scan and the ORB strategy both implement it.
package strategy

import "github.com/yjx-labs/swapscalp/indicatormath"

// Signal is the minimal cross-strategy shape a Strategy emits; the signal
// package converts its richer Signal type to this shape (it does not embed
// it).
type Signal struct {
	Symbol     string
	Direction  string // LONG | SHORT
	Strength   float64
	EntryPrice float64
	TP1Price   float64
	TP2Price   float64
	SLPrice    float64
	ATR        float64
	Source     string // which Strategy produced it
}

// Strategy consumes closed candles for one (symbol, timeframe) and may emit
// a signal on any given close.
type Strategy interface {
	Name() string
	OnCandleClose(symbol, tf string, c indicatormath.Candle) (*Signal, error)
}
