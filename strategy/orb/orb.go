// Package orb implements the parallel Order-Block strategy variant
// described in spec.md §9: a thin, regime-switched signal source that
// shares the cascade strategy's order lifecycle machinery but replaces its
// scan cascade with an order-block breakout detector.
//
// It is deliberately not a full reimplementation of a richer engine — the
// original spec scopes this variant out of the core and only asks for it
// to be representable behind the strategy.Strategy interface.
package orb

import (
	"math"
	"sync"

	"github.com/yjx-labs/swapscalp/indicatormath"
	"github.com/yjx-labs/swapscalp/strategy"
)

// Regime names which parameter set produced a signal.
type Regime string

const (
	Trend    Regime = "TREND"
	Reversal Regime = "REVERSAL"
)

// Config carries the ORB variant's own tunables, independent of the
// cascade's config.Config.
type Config struct {
	Lookback      int     // candles examined for the prior high/low and mean body
	BodyMultiple  float64 // order-block body must be >= this x the lookback mean
	ADXTrendMin   float64 // ADX above this => TREND regime
	RSIOversold   float64 // RSI below this => REVERSAL-long candidate
	RSIOverbought float64 // RSI above this => REVERSAL-short candidate
	ATRPeriod     int
	ADXPeriod     int
	RSIPeriod     int
	TP1Atr        float64
	TP2Atr        float64
	SLAtr         float64
	WindowSize    int // bounded per-symbol candle history kept for detection
}

// DefaultConfig mirrors the magnitudes the cascade strategy uses for its
// own ATR multiples, per spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{
		Lookback:      20,
		BodyMultiple:  2.0,
		ADXTrendMin:   25,
		RSIOversold:   30,
		RSIOverbought: 70,
		ATRPeriod:     14,
		ADXPeriod:     14,
		RSIPeriod:     14,
		TP1Atr:        1.5,
		TP2Atr:        3.0,
		SLAtr:         1.2,
		WindowSize:    64,
	}
}

// Strategy detects an order-block zone as a single HTF candle whose body is
// >= BodyMultiple x the mean body of the preceding Lookback candles and
// whose range breaks the prior Lookback-candle high/low, gated on
// ADX/RSI, regime-switched between TREND and REVERSAL parameter sets.
type Strategy struct {
	cfg Config
	tf  string

	mu      sync.Mutex
	windows map[string][]indicatormath.Candle
}

// New constructs the ORB strategy, reacting only to closes on tf (the
// strategy's own timeframe, independent of the cascade's HTF/LTF pair).
func New(cfg Config, tf string) *Strategy {
	return &Strategy{cfg: cfg, tf: tf, windows: make(map[string][]indicatormath.Candle)}
}

func (s *Strategy) Name() string { return "orb" }

// OnCandleClose appends c to symbol's window and, if the window is long
// enough, runs the order-block detector.
func (s *Strategy) OnCandleClose(symbol, tf string, c indicatormath.Candle) (*strategy.Signal, error) {
	if tf != s.tf {
		return nil, nil
	}
	window := s.pushCandle(symbol, c)
	if len(window) < s.cfg.Lookback+1 {
		return nil, nil
	}
	return s.detect(symbol, window), nil
}

func (s *Strategy) pushCandle(symbol string, c indicatormath.Candle) []indicatormath.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := append(s.windows[symbol], c)
	if len(w) > s.cfg.WindowSize {
		w = w[len(w)-s.cfg.WindowSize:]
	}
	s.windows[symbol] = w
	return append([]indicatormath.Candle(nil), w...)
}

// detect evaluates the most recent candle in window as a candidate order
// block against the preceding Lookback candles.
func (s *Strategy) detect(symbol string, window []indicatormath.Candle) *strategy.Signal {
	cfg := s.cfg
	n := len(window)
	obCandle := window[n-1]
	prior := window[n-1-cfg.Lookback : n-1]

	meanBody := meanAbsBody(prior)
	obBody := math.Abs(obCandle.Close - obCandle.Open)
	if meanBody <= 0 || obBody < cfg.BodyMultiple*meanBody {
		return nil
	}

	priorHigh, priorLow := highLow(prior)
	breaksUp := obCandle.High > priorHigh && obCandle.Close > obCandle.Open
	breaksDown := obCandle.Low < priorLow && obCandle.Close < obCandle.Open
	if !breaksUp && !breaksDown {
		return nil
	}

	closes := closesOf(window)
	adx := indicatormath.ADX(window, cfg.ADXPeriod)
	rsi := indicatormath.RSI(closes, cfg.RSIPeriod)
	atr := indicatormath.ATR(window, cfg.ATRPeriod)
	if atr <= 0 {
		return nil
	}

	var regime Regime
	var direction string
	switch {
	case adx >= cfg.ADXTrendMin && breaksUp:
		regime, direction = Trend, "LONG"
	case adx >= cfg.ADXTrendMin && breaksDown:
		regime, direction = Trend, "SHORT"
	case rsi <= cfg.RSIOversold && breaksDown:
		// Oversold + a strong down-break is read as an exhaustion
		// candidate for a reversal long, not a continuation short.
		regime, direction = Reversal, "LONG"
	case rsi >= cfg.RSIOverbought && breaksUp:
		regime, direction = Reversal, "SHORT"
	default:
		return nil
	}

	entry := obCandle.Close
	sign := 1.0
	if direction == "SHORT" {
		sign = -1.0
	}
	tp1 := entry + sign*atr*cfg.TP1Atr
	tp2 := entry + sign*atr*cfg.TP2Atr
	sl := entry - sign*atr*cfg.SLAtr

	strength := math.Min(adx, 100)
	if regime == Reversal {
		// Reversal signals score on distance from the RSI extreme rather
		// than trend ADX, which is low by construction in this regime.
		if direction == "LONG" {
			strength = math.Min((cfg.RSIOversold-rsi+cfg.RSIOversold)/cfg.RSIOversold*50, 100)
		} else {
			strength = math.Min((rsi-cfg.RSIOverbought+100-cfg.RSIOverbought)/(100-cfg.RSIOverbought)*50, 100)
		}
	}

	return &strategy.Signal{
		Symbol:     symbol,
		Direction:  direction,
		Strength:   strength,
		EntryPrice: entry,
		TP1Price:   tp1,
		TP2Price:   tp2,
		SLPrice:    sl,
		ATR:        atr,
		Source:     "orb:" + string(regime),
	}
}

func meanAbsBody(candles []indicatormath.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles {
		sum += math.Abs(c.Close - c.Open)
	}
	return sum / float64(len(candles))
}

func highLow(candles []indicatormath.Candle) (high, low float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	high, low = candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}

func closesOf(candles []indicatormath.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
