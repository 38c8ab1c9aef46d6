package marketdata

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrNoSuchInstrument is returned by AuxSource.GetOpenInterest for a symbol
// the exchange does not recognize; AuxPoller permanently suppresses such
// symbols for the remainder of the process lifetime.
var ErrNoSuchInstrument = errors.New("marketdata: no such instrument")

// FundingRecord/SpreadRecord are the bulk-call row shapes AuxSource returns.
type FundingRecord struct {
	Symbol string
	Funding
}

type SpreadRecord struct {
	Symbol string
	Spread
}

// AuxSource is the subset of the ExchangeAdapter façade AuxPoller consumes.
type AuxSource interface {
	GetFundingAll(ctx context.Context) ([]FundingRecord, error)
	GetBookTickerAll(ctx context.Context) ([]SpreadRecord, error)
	GetOpenInterest(ctx context.Context, symbol string) (OpenInterest, error)
}

// AuxPoller runs once per minute, collecting funding/spread/OI into the
// store
type AuxPoller struct {
	log zerolog.Logger
	store *MarketDataStore
	source AuxSource
	watchlist func() []string
	limiter *rate.Limiter

	mu sync.Mutex
	suppress map[string]bool
	prevOI map[string]float64
}

// NewAuxPoller constructs a poller reading the current watchlist from
// watchlist() each cycle (so it tracks an external symbol-selection service
// without AuxPoller owning the list itself).
func NewAuxPoller(log zerolog.Logger, store *MarketDataStore, source AuxSource, watchlist func() []string) *AuxPoller {
	return &AuxPoller{
		log:       log,
		store:     store,
		source:    source,
		watchlist: watchlist,
		// One OI call every 250ms respects exchange rate limits while still
		// completing a moderate watchlist well within the 60s cycle.
		limiter:  rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
		suppress: make(map[string]bool),
		prevOI:   make(map[string]float64),
	}
}

// Run ticks once per minute, aligned to second 0, until ctx is canceled.
func (p *AuxPoller) Run(ctx context.Context) {
	for {
		now := time.Now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		p.runCycleSafely(ctx)
	}
}

func (p *AuxPoller) runCycleSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("recovered panic in aux poll cycle")
		}
	}()
	p.runCycle(ctx)
}

func (p *AuxPoller) runCycle(ctx context.Context) {
	symbols := p.watchlist()
	if len(symbols) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		p.pollFunding(ctx)
	}()
	go func() {
		defer wg.Done()
		p.pollSpread(ctx)
	}()

	// OI is sequential-with-delay per symbol, so it runs
	// on the calling goroutine while funding/spread run concurrently.
	p.pollOI(ctx, symbols)

	wg.Wait()
}

func (p *AuxPoller) pollFunding(ctx context.Context) {
	recs, err := p.source.GetFundingAll(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("funding poll failed")
		return
	}
	for _, r := range recs {
		p.store.PutFunding(r.Symbol, r.Funding)
	}
}

func (p *AuxPoller) pollSpread(ctx context.Context) {
	recs, err := p.source.GetBookTickerAll(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("spread poll failed")
		return
	}
	for _, r := range recs {
		if r.Bid <= 0 || r.Ask <= 0 {
			continue
		}
		sp := r.Spread
		sp.Mid = (sp.Bid + sp.Ask) / 2
		sp.Spread = sp.Ask - sp.Bid
		if sp.Mid > 0 {
			sp.SpreadPct = sp.Spread / sp.Mid
		}
		p.store.PutSpread(r.Symbol, sp)
	}
}

func (p *AuxPoller) pollOI(ctx context.Context, symbols []string) {
	for _, sym := range symbols {
		p.mu.Lock()
		suppressed := p.suppress[sym]
		p.mu.Unlock()
		if suppressed {
			continue
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		oi, err := p.source.GetOpenInterest(ctx, sym)
		if err != nil {
			if errors.Is(err, ErrNoSuchInstrument) {
				p.mu.Lock()
				p.suppress[sym] = true
				p.mu.Unlock()
				p.log.Info().Str("symbol", sym).Msg("suppressing OI polling: no such instrument")
			} else {
				p.log.Warn().Err(err).Str("symbol", sym).Msg("OI poll failed")
			}
			continue
		}

		p.mu.Lock()
		prev := p.prevOI[sym]
		p.prevOI[sym] = oi.Value
		p.mu.Unlock()

		oi.Change = oi.Value - prev
		if prev > 0 {
			oi.ChangePct = oi.Change / prev
		}
		switch {
		case oi.Change > 0:
			oi.Direction = OIUp
		case oi.Change < 0:
			oi.Direction = OIDown
		default:
			oi.Direction = OIFlat
		}

		p.store.PutOI(sym, oi)
	}
}
