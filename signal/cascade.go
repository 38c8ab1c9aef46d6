package signal

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/yjx-labs/swapscalp/config"
	"github.com/yjx-labs/swapscalp/indicatormath"
	"github.com/yjx-labs/swapscalp/marketdata"
	"github.com/yjx-labs/swapscalp/momentum"
	"github.com/yjx-labs/swapscalp/trend"
)

const (
	ltfTimeframe = "5m"
	htfTimeframe = "15m"
	minLTFCandles = 10
	minHTFCandles = 4
	signalTTL = 60 * time.Second
)

// Engine runs the periodic scan-and-cascade that turns raw candles and aux
// quotes into ranked trade signals.
type Engine struct {
	log       zerolog.Logger
	cfg       *config.Config
	store     *marketdata.MarketDataStore
	marks     *marketdata.MarkPrices
	watchlist func() []string
	active    *ActiveSignals
}

// NewEngine constructs a SignalEngine publishing into active.
func NewEngine(log zerolog.Logger, cfg *config.Config, store *marketdata.MarketDataStore, marks *marketdata.MarkPrices, watchlist func() []string, active *ActiveSignals) *Engine {
	return &Engine{log: log, cfg: cfg, store: store, marks: marks, watchlist: watchlist, active: active}
}

// Run ticks once per minute at second 30, after AuxPoller's second-0 cycle
// has had time to refresh funding/OI/spread for the minute.
func (e *Engine) Run(stop <-chan struct{}) {
	for {
		now := time.Now()
		next := now.Truncate(time.Minute).Add(time.Minute).Add(30 * time.Second)
		if next.Before(now) {
			next = next.Add(time.Minute)
		}
		select {
		case <-stop:
			return
		case <-time.After(time.Until(next)):
		}
		e.scanSafely()
	}
}

func (e *Engine) scanSafely() {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("recovered panic in signal scan")
		}
	}()
	e.ScanForSignals()
}

// ScanForSignals is the public entry point (also used directly by tests):
// for each watchlist symbol, run analyzeSymbol sequentially; collect
// passing signals; sort descending by strength; replace the active
// snapshot.
func (e *Engine) ScanForSignals() []Signal {
	symbols := e.watchlist()
	out := make([]Signal, 0, len(symbols))
	for _, sym := range symbols {
		if s, ok := e.analyzeSymbol(sym); ok {
			out = append(out, s)
		}
	}
	e.active.Replace(out)
	return out
}

// analyzeSymbol runs the linear F1/F2/F3 cascade for one symbol.
func (e *Engine) analyzeSymbol(symbol string) (Signal, bool) {
	cfg := e.cfg

	// Step 1 — Load.
	ltfRaw := e.store.LoadWindow(symbol, ltfTimeframe, max(minLTFCandles, cfg.MomentumBars+1))
	htfRaw := e.store.LoadWindow(symbol, htfTimeframe, max(minHTFCandles, cfg.TrendBars))
	if len(ltfRaw) < minLTFCandles || len(htfRaw) < minHTFCandles {
		return Signal{}, false
	}
	ltf := toIndicatorCandles(ltfRaw)
	htf := toIndicatorCandles(htfRaw)

	spreadQuote, haveSpread := e.store.GetSpread(symbol)
	if !haveSpread {
		return Signal{}, false // soft reject, "data gap"
	}

	// Step 2 — F1 macro filter.
	if spreadQuote.SpreadPct > cfg.MaxSpreadPct {
		return Signal{}, false
	}
	fundingRec, _ := e.store.GetFunding(symbol) // absence treated as 0 rate
	fundingRate := fundingRec.Rate
	fundingRegime := classifyFundingRegime(fundingRate, cfg.FundingExtremeHi, cfg.FundingExtremeLo)

	// Step 3 — F2 trend.
	trendResult := trend.Analyze(htf)
	if trendResult.Direction == trend.Neutral {
		return Signal{}, false
	}
	oiRec, _ := e.store.GetOI(symbol)

	// Step 4 — F3 momentum + CVD.
	momThresh := momentum.Thresholds{
		BodyExhausted: cfg.BodyExhausted,
		BodyMomentum:  cfg.BodyMomentum,
		VolDecrease:   cfg.VolumeDecrease,
	}
	momResult := momentum.Analyze(ltf, momThresh)
	if momResult.State == momentum.Exhausted || momResult.State == momentum.Neutral {
		return Signal{}, false
	}
	if momResult.State == momentum.Momentum {
		lastBody := math.Abs(ltf[len(ltf)-1].Close - ltf[len(ltf)-1].Open)
		meanPrev := meanAbsBody(ltf[:len(ltf)-1])
		if meanPrev > 0 && lastBody/meanPrev > 1.5 {
			return Signal{}, false
		}
	}
	if trendResult.Direction != momResult.Direction {
		return Signal{}, false
	}

	direction := Long
	if trendResult.Direction == trend.Down {
		direction = Short
	}
	if fundingRegime == RegimeShortOnly && direction == Long {
		return Signal{}, false
	}
	if fundingRegime == RegimeLongOnly && direction == Short {
		return Signal{}, false
	}

	cvd := indicatormath.CVD(ltf, cfg.CvdBars)
	totalVol := 0.0
	for _, c := range ltf[len(ltf)-cfg.CvdBars:] {
		totalVol += c.Volume
	}
	cvdRatio := 0.0
	if totalVol > 0 {
		cvdRatio = math.Abs(cvd) / totalVol
	}
	if (direction == Long && cvd < 0) || (direction == Short && cvd > 0) {
		return Signal{}, false
	}
	if cvdRatio < cfg.MinCvdRatio {
		return Signal{}, false
	}

	if direction == Long && fundingRate > cfg.FundingMaxLong {
		return Signal{}, false
	}
	if direction == Short && fundingRate < cfg.FundingMinShort {
		return Signal{}, false
	}

	// Step 5 — price targets.
	atr := indicatormath.ATR(ltf, cfg.ATRPeriod)
	lastClose := ltf[len(ltf)-1].Close
	if lastClose == 0 {
		return Signal{}, false
	}
	atrPct := atr / lastClose
	if atrPct < cfg.MinAtrPct {
		return Signal{}, false
	}

	currentPrice := lastClose
	if spreadQuote.Mid > 0 {
		currentPrice = spreadQuote.Mid
	}

	entryOffset := atr * cfg.EntryOffsetATR
	roundTripFloor := math.Max(cfg.MinTpSlPct, 2*cfg.FeePct+2*spreadQuote.SpreadPct+cfg.SlippagePct)

	entry, tp1, tp2, sl := priceTargets(direction, currentPrice, atr, entryOffset, cfg.TP1Atr, cfg.TP2Atr, cfg.SLAtr, roundTripFloor)

	// Step 6 — strength score.
	fundingFavorable := (direction == Long && fundingRate <= 0) || (direction == Short && fundingRate >= 0)
	score := trendResult.Strength*30 +
		momResult.Strength*25 +
		math.Min(cvdRatio/(3*cfg.MinCvdRatio), 1)*20
	if fundingFavorable {
		score += 15
	}
	if oiRec.Direction == marketdata.OIUp {
		score += 10
	}
	score = math.Min(score, 100)

	now := time.Now()
	s := Signal{
		ID:            newID(),
		Symbol:        symbol,
		Direction:     direction,
		Strength:      score,
		CurrentPrice:  currentPrice,
		EntryPrice:    entry,
		TP1Price:      tp1,
		TP2Price:      tp2,
		SLPrice:       sl,
		ATR:           atr,
		ATRPct:        atrPct,
		TrendDir:      trendResult.Direction,
		MomentumState: momResult.State,
		CVD:           cvd,
		FundingRate:   fundingRate,
		FundingRegime: fundingRegime,
		OIChange:      oiRec.Change,
		SpreadPct:     spreadQuote.SpreadPct,
		CreatedAt:     now,
		ExpiresAt:     now.Add(signalTTL),
		Source:        "cascade",
	}
	if !s.Valid() {
		return Signal{}, false
	}
	return s, true
}

// priceTargets computes entry/tp1/tp2/sl, rounded with shopspring/decimal
// for the final pass (intermediate math stays float64).
func priceTargets(dir Direction, currentPrice, atr, entryOffset, tp1Mult, tp2Mult, slMult, roundTripFloor float64) (entry, tp1, tp2, sl float64) {
	sign := 1.0
	if dir == Short {
		sign = -1.0
	}
	entry = currentPrice - sign*entryOffset

	minDist := entry * roundTripFloor
	tp1Dist := math.Max(atr*tp1Mult, minDist)
	tp2Dist := math.Max(atr*tp2Mult, minDist)
	slDist := math.Max(atr*slMult, minDist)

	tp1 = entry + sign*tp1Dist
	tp2 = entry + sign*tp2Dist
	sl = entry - sign*slDist

	return roundPrice(entry), roundPrice(tp1), roundPrice(tp2), roundPrice(sl)
}

func roundPrice(v float64) float64 {
	d := decimal.NewFromFloat(v).Round(8)
	f, _ := d.Float64()
	return f
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

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
