package control

import (
	"time"

	"github.com/google/uuid"

	"github.com/yjx-labs/swapscalp/indicatormath"
	"github.com/yjx-labs/swapscalp/marketdata"
	"github.com/yjx-labs/swapscalp/signal"
	"github.com/yjx-labs/swapscalp/strategy"
)

const strategySignalTTL = 60 * time.Second

func toIndicatorCandle(c marketdata.Candle) indicatormath.Candle {
	return indicatormath.Candle{
		OpenTime: c.OpenTime, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
	}
}

// toSignal lifts a strategy.Signal (the narrow cross-strategy shape) into
// the richer signal.Signal Coordinator/ActiveSignals consume, stamping an
// ID and the same 60s TTL the cascade scan uses.
func toSignal(s strategy.Signal) signal.Signal {
	now := time.Now()
	return signal.Signal{
		ID:         uuid.NewString(),
		Symbol:     s.Symbol,
		Direction:  signal.Direction(s.Direction),
		Strength:   s.Strength,
		EntryPrice: s.EntryPrice,
		TP1Price:   s.TP1Price,
		TP2Price:   s.TP2Price,
		SLPrice:    s.SLPrice,
		ATR:        s.ATR,
		CreatedAt:  now,
		ExpiresAt:  now.Add(strategySignalTTL),
		Source:     s.Source,
	}
}
