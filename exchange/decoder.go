package exchange

import (
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/yjx-labs/swapscalp/marketdata"
)

// binanceDecoder demultiplexes Binance USDT-M futures combined-stream frames
// into marketdata.Candle / mark-price events, implementing
// marketdata.Decoder. The donor hand-parses this JSON inline per listener
// goroutine (trend_analyzer.go, predator_engine.go); here it is isolated
// behind one type so ExchangeStream stays exchange-agnostic.
type binanceDecoder struct {
	log zerolog.Logger
}

// combinedEnvelope is the `{"stream":"...","data":{...}}` wrapper every
// Binance combined-stream frame arrives in.
type combinedEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type klineEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime  int64  `json:"t"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Close     string `json:"c"`
		Volume    string `json:"v"`
		IsClosed  bool   `json:"x"`
	} `json:"k"`
}

type markPriceEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	MarkPrice string `json:"p"`
}

// DecodeCandle returns ok=true only for a confirmed (closed) kline event.
func (d *binanceDecoder) DecodeCandle(raw []byte) (marketdata.Candle, bool) {
	_, inner, ok := unwrap(raw)
	if !ok {
		return marketdata.Candle{}, false
	}

	var ev klineEvent
	if err := json.Unmarshal(inner, &ev); err != nil || ev.EventType != "kline" {
		return marketdata.Candle{}, false
	}
	if !ev.Kline.IsClosed {
		return marketdata.Candle{}, false
	}

	c := marketdata.Candle{
		Symbol:    ev.Symbol,
		Timeframe: ev.Kline.Interval,
		OpenTime:  ev.Kline.OpenTime,
		Open:      parseF(ev.Kline.Open),
		High:      parseF(ev.Kline.High),
		Low:       parseF(ev.Kline.Low),
		Close:     parseF(ev.Kline.Close),
		Volume:    parseF(ev.Kline.Volume),
	}
	return c, true
}

// DecodeMarkPrice returns ok=true for a markPriceUpdate event.
func (d *binanceDecoder) DecodeMarkPrice(raw []byte) (string, float64, bool) {
	_, inner, ok := unwrap(raw)
	if !ok {
		return "", 0, false
	}

	var ev markPriceEvent
	if err := json.Unmarshal(inner, &ev); err != nil || ev.EventType != "markPriceUpdate" {
		return "", 0, false
	}
	return ev.Symbol, parseF(ev.MarkPrice), true
}

func unwrap(raw []byte) (combinedEnvelope, json.RawMessage, bool) {
	var env combinedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Data) == 0 {
		return combinedEnvelope{}, nil, false
	}
	return env, env.Data, true
}

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
