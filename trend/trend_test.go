package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yjx-labs/swapscalp/indicatormath"
)

func up(n int, start float64) []indicatormath.Candle {
	out := make([]indicatormath.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		out[i] = indicatormath.Candle{High: price + 1, Low: price, Close: price + 0.5}
		price += 1
	}
	return out
}

func down(n int, start float64) []indicatormath.Candle {
	out := make([]indicatormath.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		out[i] = indicatormath.Candle{High: price + 1, Low: price, Close: price + 0.5}
		price -= 1
	}
	return out
}

func TestAnalyzeUpTrend(t *testing.T) {
	r := Analyze(up(6, 100))
	assert.Equal(t, Up, r.Direction)
	assert.Greater(t, r.Strength, 0.0)
}

func TestAnalyzeDownTrend(t *testing.T) {
	r := Analyze(down(6, 100))
	assert.Equal(t, Down, r.Direction)
}

func TestAnalyzeNeutralOnChoppy(t *testing.T) {
	choppy := []indicatormath.Candle{
		{High: 10, Low: 5, Close: 7},
		{High: 12, Low: 4, Close: 6},
		{High: 9, Low: 6, Close: 8},
		{High: 11, Low: 3, Close: 5},
	}
	r := Analyze(choppy)
	assert.Equal(t, Neutral, r.Direction)
}

func TestAnalyzeTooShort(t *testing.T) {
	r := Analyze([]indicatormath.Candle{{High: 1, Low: 1}})
	assert.Equal(t, Neutral, r.Direction)
}
