package signal

import (
	"github.com/yjx-labs/swapscalp/indicatormath"
	"github.com/yjx-labs/swapscalp/strategy"
)

// CascadeStrategy adapts Engine's on-demand analyzeSymbol to the
// strategy.Strategy interface, so OrderCoordinator can
// treat the periodic cascade scan and the ORB strategy uniformly as signal
// sources. The periodic Run loop remains the primary path; OnCandleClose
// lets a caller opportunistically re-evaluate a symbol the moment its HTF
// candle closes rather than waiting for the next minute-boundary tick.
type CascadeStrategy struct {
	engine *Engine
}

// NewCascadeStrategy wraps engine as a Strategy.
func NewCascadeStrategy(engine *Engine) *CascadeStrategy {
	return &CascadeStrategy{engine: engine}
}

func (c *CascadeStrategy) Name() string { return "cascade" }

// OnCandleClose re-evaluates symbol only on an HTF close, since the
// cascade's F2 trend stage is what a new HTF bar actually changes.
func (c *CascadeStrategy) OnCandleClose(symbol, tf string, _ indicatormath.Candle) (*strategy.Signal, error) {
	if tf != htfTimeframe {
		return nil, nil
	}
	s, ok := c.engine.analyzeSymbol(symbol)
	if !ok {
		return nil, nil
	}
	return toStrategySignal(s), nil
}

func toStrategySignal(s Signal) *strategy.Signal {
	return &strategy.Signal{
		Symbol:     s.Symbol,
		Direction:  string(s.Direction),
		Strength:   s.Strength,
		EntryPrice: s.EntryPrice,
		TP1Price:   s.TP1Price,
		TP2Price:   s.TP2Price,
		SLPrice:    s.SLPrice,
		ATR:        s.ATR,
		Source:     s.Source,
	}
}
