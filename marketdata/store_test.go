package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleRingOrderingAndDedup(t *testing.T) {
	store := NewMarketDataStore()

	store.PutCandle(Candle{Symbol: "BTCUSDT", Timeframe: "5m", OpenTime: 1000, Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 10})
	store.PutCandle(Candle{Symbol: "BTCUSDT", Timeframe: "5m", OpenTime: 2000, Open: 1.5, High: 2.5, Low: 1.5, Close: 2, Volume: 10})
	// Replace the open-time=2000 bar (a revision of the same bar).
	store.PutCandle(Candle{Symbol: "BTCUSDT", Timeframe: "5m", OpenTime: 2000, Open: 1.5, High: 3, Low: 1.5, Close: 2.2, Volume: 12})

	win := store.LoadWindow("BTCUSDT", "5m", 10)
	require.Len(t, win, 2)
	assert.Equal(t, int64(1000), win[0].OpenTime)
	assert.Equal(t, int64(2000), win[1].OpenTime)
	assert.Equal(t, 2.2, win[1].Close)

	for i := 1; i < len(win); i++ {
		assert.Less(t, win[i-1].OpenTime, win[i].OpenTime)
	}
}

func TestCandleRingTrimsToCapacity(t *testing.T) {
	store := NewMarketDataStore()
	for i := 0; i < ltfRingSize+20; i++ {
		store.PutCandle(Candle{Symbol: "ETHUSDT", Timeframe: "1m", OpenTime: int64(i), Open: 1, High: 1, Low: 1, Close: 1})
	}
	win := store.LoadWindow("ETHUSDT", "1m", ltfRingSize+20)
	assert.LessOrEqual(t, len(win), ltfRingSize)
}

func TestInvalidCandleRejected(t *testing.T) {
	c := Candle{Open: 5, High: 4, Low: 1, Close: 3} // high < open, invalid
	assert.False(t, c.Valid())
}

func TestAuxQuoteTTL(t *testing.T) {
	store := NewMarketDataStore()
	_, ok := store.GetFunding("BTCUSDT")
	assert.False(t, ok)

	store.PutFunding("BTCUSDT", Funding{Rate: 0.0001})
	f, ok := store.GetFunding("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 0.0001, f.Rate)
}

func TestMarkPrices(t *testing.T) {
	m := NewMarkPrices()
	_, ok := m.Get("BTCUSDT")
	assert.False(t, ok)
	m.Set("BTCUSDT", 50000)
	p, ok := m.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 50000.0, p)
}
