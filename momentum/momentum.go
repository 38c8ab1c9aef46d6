// Package momentum classifies lower-timeframe momentum state and direction
// from a candle window.
//
// Grounded on the donor's CalculateVelocity (body/volume-ratio reasoning in
// trend_analyzer.go) and predator_engine.go's isExtended/strike-penalty
// candle-exhaustion heuristics, generalized into the
// bodySizeRatio/volumeRatio/pullback-validity rule.
package momentum

import (
	"math"

	"github.com/yjx-labs/swapscalp/indicatormath"
	"github.com/yjx-labs/swapscalp/trend"
)

// State is the momentum classification.
type State string

const (
	Momentum State = "MOMENTUM"
	Pullback State = "PULLBACK"
	Exhausted State = "EXHAUSTED"
	Neutral State = "NEUTRAL"
)

// Thresholds carries the configurable cutoffs for classifying a window.
type Thresholds struct {
	BodyExhausted float64 // bodySizeRatio below this + low volume => EXHAUSTED
	BodyMomentum  float64 // bodySizeRatio above this + steady volume => MOMENTUM
	VolDecrease   float64 // volumeRatio threshold distinguishing the two
}

// Result is the outcome of analyzing one candle window.
type Result struct {
	Direction trend.Direction
	State     State
	Strength  float64 // 0..1
}

// Analyze classifies momentum over window (oldest first).
func Analyze(window []indicatormath.Candle, th Thresholds) Result {
	if len(window) < 2 {
		return Result{Direction: trend.Neutral, State: Neutral}
	}

	first := window[0]
	last := window[len(window)-1]
	prev := window[:len(window)-1]

	dir := trend.Neutral
	if first.Open != 0 {
		move := (last.Close - first.Open) / first.Open
		switch {
		case move > 0.001:
			dir = trend.Up
		case move < -0.001:
			dir = trend.Down
		}
	}

	lastBody := math.Abs(last.Close - last.Open)
	meanPrevBody := meanAbsBody(prev)
	bodySizeRatio := 0.0
	if meanPrevBody > 0 {
		bodySizeRatio = lastBody / meanPrevBody
	}

	lastVolume := last.Volume
	meanPrevVolume := meanVolume(prev)
	volumeRatio := 0.0
	if meanPrevVolume > 0 {
		volumeRatio = lastVolume / meanPrevVolume
	}

	lastDir := trend.Neutral
	if last.Close > last.Open {
		lastDir = trend.Up
	} else if last.Close < last.Open {
		lastDir = trend.Down
	}

	state := Neutral
	switch {
	case bodySizeRatio < th.BodyExhausted && volumeRatio < th.VolDecrease:
		state = Exhausted
	case bodySizeRatio > th.BodyMomentum && volumeRatio >= th.VolDecrease:
		state = Momentum
	case (lastDir != dir || bodySizeRatio < th.BodyMomentum) && pullbackValid(dir, last, prev):
		state = Pullback
	}

	strength := (math.Min(bodySizeRatio, 2)/2 + math.Min(volumeRatio, 2)/2) / 2

	return Result{Direction: dir, State: state, Strength: strength}
}

// pullbackValid checks: for UP, currentLow > 0.995 * min(prevLows); for
// DOWN, currentHigh < 1.005 * max(prevHighs).
func pullbackValid(dir trend.Direction, last indicatormath.Candle, prev []indicatormath.Candle) bool {
	if len(prev) == 0 {
		return false
	}
	switch dir {
	case trend.Up:
		minLow := prev[0].Low
		for _, c := range prev[1:] {
			if c.Low < minLow {
				minLow = c.Low
			}
		}
		return last.Low > 0.995*minLow
	case trend.Down:
		maxHigh := prev[0].High
		for _, c := range prev[1:] {
			if c.High > maxHigh {
				maxHigh = c.High
			}
		}
		return last.High < 1.005*maxHigh
	default:
		return false
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

func meanVolume(candles []indicatormath.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles {
		sum += c.Volume
	}
	return sum / float64(len(candles))
}
