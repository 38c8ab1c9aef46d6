// Package signal implements the SignalEngine: the periodic watchlist scan
// applying the F1 (macro/spread/funding) -> F2 (trend) -> F3
// (momentum+CVD) cascade and emitting scored directional signals.
//
// Grounded on the donor's signal_filter.go (Validate's staged
// threshold/scoring logic) and scalp_signal_engine.go
// (ProcessScalpCandidate's trend-alignment gate), restructured from
// trade-tape/iceberg scoring into the candle/indicator cascade this spec
// requires.
package signal

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yjx-labs/swapscalp/indicatormath"
	"github.com/yjx-labs/swapscalp/marketdata"
	"github.com/yjx-labs/swapscalp/momentum"
	"github.com/yjx-labs/swapscalp/trend"
)

// Direction mirrors the order side a signal proposes.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// FundingRegime tags which side funding extremes leave open, per the F1
// macro filter: a funding rate beyond extremeHigh/extremeLow means the
// crowded side is paying (or being paid) enough that only the opposite
// direction is admitted.
type FundingRegime string

const (
	RegimeBoth      FundingRegime = "BOTH"
	RegimeLongOnly  FundingRegime = "LONG_ONLY"
	RegimeShortOnly FundingRegime = "SHORT_ONLY"
)

// classifyFundingRegime tags the funding rate against the extreme
// thresholds: beyond extremeHigh, longs are overcrowded and only shorts are
// admitted; beyond extremeLow (negative), the reverse.
func classifyFundingRegime(rate, extremeHigh, extremeLow float64) FundingRegime {
	switch {
	case rate > extremeHigh:
		return RegimeShortOnly
	case rate < extremeLow:
		return RegimeLongOnly
	default:
		return RegimeBoth
	}
}

// Signal is one scan result that passed every filter stage.
type Signal struct {
	ID            string
	Symbol        string
	Direction     Direction
	Strength      float64
	CurrentPrice  float64
	EntryPrice    float64
	TP1Price      float64
	TP2Price      float64
	SLPrice       float64
	ATR           float64
	ATRPct        float64
	TrendDir      trend.Direction
	MomentumState momentum.State
	CVD           float64
	FundingRate   float64
	FundingRegime FundingRegime
	OIChange      float64
	SpreadPct     float64
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Source        string
}

// Valid checks the TP/SL ordering invariant for the signal's direction.
func (s Signal) Valid() bool {
	if !s.ExpiresAt.After(s.CreatedAt) {
		return false
	}
	switch s.Direction {
	case Long:
		return s.SLPrice < s.EntryPrice && s.EntryPrice < s.TP1Price && s.TP1Price <= s.TP2Price
	case Short:
		return s.SLPrice > s.EntryPrice && s.EntryPrice > s.TP1Price && s.TP1Price >= s.TP2Price
	default:
		return false
	}
}

func newID() string { return uuid.NewString() }

// ActiveSignals is the TTL'd snapshot SignalEngine publishes and
// OrderCoordinator reads, one consumption at a time.
type ActiveSignals struct {
	mu      sync.Mutex
	signals []Signal
	taken   map[string]bool
}

// NewActiveSignals constructs an empty snapshot holder.
func NewActiveSignals() *ActiveSignals {
	return &ActiveSignals{taken: make(map[string]bool)}
}

// Replace installs a new snapshot, sorted descending by strength, dropping
// anything already expired.
func (a *ActiveSignals) Replace(signals []Signal) {
	now := time.Now()
	live := make([]Signal, 0, len(signals))
	for _, s := range signals {
		if s.ExpiresAt.After(now) {
			live = append(live, s)
		}
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].Strength > live[j].Strength })

	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals = live
	a.taken = make(map[string]bool)
}

// Upsert installs or replaces the entry for s.Symbol without touching any
// other symbol's entry, re-sorting by strength. Used by strategy sources
// (e.g. the ORB detector) that emit one signal at a time on a candle close,
// as opposed to Engine.ScanForSignals' periodic full-table Replace.
func (a *ActiveSignals) Upsert(s Signal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	live := make([]Signal, 0, len(a.signals)+1)
	for _, existing := range a.signals {
		if existing.Symbol == s.Symbol {
			continue
		}
		if existing.ExpiresAt.After(now) {
			live = append(live, existing)
		}
	}
	if s.ExpiresAt.After(now) {
		live = append(live, s)
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].Strength > live[j].Strength })
	a.signals = live
	delete(a.taken, s.ID)
}

// Take returns the highest-strength unexpired, not-yet-consumed signals in
// order, marking each as consumed so a later reader never sees it twice.
// A signal whose expiresAt has passed is silently skipped.
func (a *ActiveSignals) Take() []Signal {
	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Signal, 0, len(a.signals))
	for _, s := range a.signals {
		if a.taken[s.ID] {
			continue
		}
		if !s.ExpiresAt.After(now) {
			continue
		}
		a.taken[s.ID] = true
		out = append(out, s)
	}
	return out
}

// toIndicatorCandles converts a MarketDataStore window to the narrow shape
// indicatormath/trend/momentum operate on.
func toIndicatorCandles(cs []marketdata.Candle) []indicatormath.Candle {
	out := make([]indicatormath.Candle, len(cs))
	for i, c := range cs {
		out[i] = indicatormath.Candle{
			OpenTime: c.OpenTime, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
		}
	}
	return out
}
