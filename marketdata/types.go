// Package marketdata implements the market-data plane: the candle/aux-quote
// store, the candle aggregator, the reconnecting exchange stream, and the
// periodic REST aux poller.
package marketdata

import "time"

// Candle is a closed bar for one (symbol, timeframe). Never mutated after
// insertion; low <= min(open,close) <= max(open,close) <= high, volume >= 0.
type Candle struct {
	Symbol string
	Timeframe string
	OpenTime int64 // ms
	Open float64
	High float64
	Low float64
	Close float64
	Volume float64
}

// Valid checks the OHLC ordering invariant.
func (c Candle) Valid() bool {
	if c.Volume < 0 {
		return false
	}
	lo := min(c.Open, c.Close)
	hi := max(c.Open, c.Close)
	return c.Low <= lo && hi <= c.High
}

// Funding is the funding-rate half of AuxQuote.
type Funding struct {
	Rate float64
	NextFundingTime int64
	MarkPrice float64
	IndexPrice float64
}

// OIDirection classifies open-interest movement.
type OIDirection string

const (
	OIUp OIDirection = "UP"
	OIDown OIDirection = "DOWN"
	OIFlat OIDirection = "FLAT"
)

// OpenInterest is the OI half of AuxQuote.
type OpenInterest struct {
	Value float64
	Change float64
	ChangePct float64
	Direction OIDirection
}

// Spread is the top-of-book half of AuxQuote.
type Spread struct {
	Bid float64
	Ask float64
	Mid float64
	Spread float64
	SpreadPct float64
}

// AuxQuote bundles the three auxiliary records kept per symbol. Each field
// carries its own fetchedAt so TTL expiry is evaluated independently.
type AuxQuote struct {
	Funding Funding
	FundingAt time.Time
	OI OpenInterest
	OIAt time.Time
	Spread Spread
	SpreadAt time.Time
}
