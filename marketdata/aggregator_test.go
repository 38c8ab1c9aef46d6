package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorFanOutAndStore(t *testing.T) {
	store := NewMarketDataStore()
	agg := NewCandleAggregator(store)

	var received []Candle
	unsub := agg.Subscribe(func(c Candle) {
		received = append(received, c)
	})
	defer unsub()

	c := Candle{Symbol: "BTCUSDT", Timeframe: "5m", OpenTime: 1, Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 1}
	agg.OnCandleClose(c)

	require.Len(t, received, 1)
	assert.Equal(t, c, received[0])

	win := store.LoadWindow("BTCUSDT", "5m", 10)
	require.Len(t, win, 1)
}

func TestAggregatorDropsInvalidCandle(t *testing.T) {
	store := NewMarketDataStore()
	agg := NewCandleAggregator(store)
	agg.OnCandleClose(Candle{Symbol: "BTCUSDT", Timeframe: "5m", Open: 5, High: 1, Low: 1, Close: 1})
	win := store.LoadWindow("BTCUSDT", "5m", 10)
	assert.Len(t, win, 0)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	store := NewMarketDataStore()
	agg := NewCandleAggregator(store)
	count := 0
	unsub := agg.Subscribe(func(Candle) { count++ })
	agg.OnCandleClose(Candle{Symbol: "X", Timeframe: "1m", OpenTime: 1, High: 1, Low: 0})
	unsub()
	agg.OnCandleClose(Candle{Symbol: "X", Timeframe: "1m", OpenTime: 2, High: 1, Low: 0})
	assert.Equal(t, 1, count)
}
