package momentum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yjx-labs/swapscalp/indicatormath"
	"github.com/yjx-labs/swapscalp/trend"
)

var th = Thresholds{BodyExhausted: 0.5, BodyMomentum: 1.2, VolDecrease: 0.8}

func TestAnalyzeMomentumState(t *testing.T) {
	window := []indicatormath.Candle{
		{Open: 100, Close: 101, High: 101.5, Low: 99.5, Volume: 10},
		{Open: 101, Close: 102, High: 102.5, Low: 100.5, Volume: 10},
		{Open: 102, Close: 103, High: 103.5, Low: 101.5, Volume: 10},
		{Open: 103, Close: 105, High: 106, Low: 102.5, Volume: 15},
	}
	r := Analyze(window, th)
	assert.Equal(t, trend.Up, r.Direction)
	assert.Equal(t, Momentum, r.State)
}

func TestAnalyzeExhaustedState(t *testing.T) {
	window := []indicatormath.Candle{
		{Open: 100, Close: 103, High: 103.5, Low: 99.5, Volume: 100},
		{Open: 103, Close: 106, High: 106.5, Low: 102.5, Volume: 100},
		{Open: 106, Close: 106.1, High: 106.3, Low: 105.9, Volume: 5},
	}
	r := Analyze(window, th)
	assert.Equal(t, Exhausted, r.State)
}

func TestAnalyzeTooShortIsNeutral(t *testing.T) {
	r := Analyze([]indicatormath.Candle{{Open: 1, Close: 1}}, th)
	assert.Equal(t, Neutral, r.State)
}
