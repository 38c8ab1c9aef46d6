package exchange

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"
	"github.com/yjx-labs/swapscalp/marketdata"
)

// Binance is the reference ExchangeAdapter implementation over Binance
// USDT-M futures, consolidating the donor's scattered direct
// *futures.Client call sites (execution_service.go, predator_engine.go,
// trend_analyzer.go) behind one façade.
type Binance struct {
	log    zerolog.Logger
	client *futures.Client
	info   *SymbolInfoCache

	stream *marketdata.ExchangeStream
	marks  *marketdata.MarkPrices
}

// NewBinance constructs the adapter. testnet selects the futures testnet
// base URL, matching the donor's IsTestnet config flag.
func NewBinance(log zerolog.Logger, apiKey, apiSecret string, testnet bool, agg *marketdata.CandleAggregator, marks *marketdata.MarkPrices) *Binance {
	futures.UseTestnet = testnet
	client := futures.NewClient(apiKey, apiSecret)

	b := &Binance{log: log, client: client, info: NewSymbolInfoCache(), marks: marks}
	decoder := &binanceDecoder{log: log}
	b.stream = marketdata.NewExchangeStream(log, buildCombinedStreamURL, decoder, agg, marks)
	return b
}

func buildCombinedStreamURL(symbols, timeframes []string) string {
	base := "wss://fstream.binance.com/stream?streams="
	streams := ""
	for _, s := range symbols {
		lower := toLower(s)
		for _, tf := range timeframes {
			streams += lower + "@kline_" + tf + "/"
		}
		streams += lower + "@markPrice@1s/"
	}
	return base + streams
}

func toLower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// SubscribePublic starts (or restarts) the streaming session for the given
// symbols/timeframes.
func (b *Binance) SubscribePublic(symbols []string, timeframes []string) {
	b.stream.Subscribe(symbols, timeframes)
	go b.stream.Run(context.Background())
}

func (b *Binance) IsStreamConnected() bool   { return b.stream.IsConnected() }
func (b *Binance) StreamFatal() <-chan error { return b.stream.Fatal() }
func (b *Binance) Shutdown()                 { b.stream.Shutdown() }

// GetFundingAll implements marketdata.AuxSource.
func (b *Binance) GetFundingAll(ctx context.Context) ([]marketdata.FundingRecord, error) {
	premiums, err := b.client.NewPremiumIndexService().Do(ctx)
	if err != nil {
		return nil, classifyError(err)
	}
	out := make([]marketdata.FundingRecord, 0, len(premiums))
	for _, p := range premiums {
		rate, _ := strconv.ParseFloat(p.LastFundingRate, 64)
		mark, _ := strconv.ParseFloat(p.MarkPrice, 64)
		index, _ := strconv.ParseFloat(p.IndexPrice, 64)
		out = append(out, marketdata.FundingRecord{
			Symbol: p.Symbol,
			Funding: marketdata.Funding{
				Rate:            rate,
				NextFundingTime: p.NextFundingTime,
				MarkPrice:       mark,
				IndexPrice:      index,
			},
		})
	}
	return out, nil
}

// GetBookTickerAll implements marketdata.AuxSource.
func (b *Binance) GetBookTickerAll(ctx context.Context) ([]marketdata.SpreadRecord, error) {
	tickers, err := b.client.NewListBookTickersService().Do(ctx)
	if err != nil {
		return nil, classifyError(err)
	}
	out := make([]marketdata.SpreadRecord, 0, len(tickers))
	for _, t := range tickers {
		bid, _ := strconv.ParseFloat(t.BidPrice, 64)
		ask, _ := strconv.ParseFloat(t.AskPrice, 64)
		out = append(out, marketdata.SpreadRecord{
			Symbol: t.Symbol,
			Spread: marketdata.Spread{Bid: bid, Ask: ask},
		})
	}
	return out, nil
}

// GetOpenInterest implements marketdata.AuxSource.
func (b *Binance) GetOpenInterest(ctx context.Context, symbol string) (marketdata.OpenInterest, error) {
	oi, err := b.client.NewOpenInterestService().Symbol(symbol).Do(ctx)
	if err != nil {
		return marketdata.OpenInterest{}, classifyError(err)
	}
	value, _ := strconv.ParseFloat(oi.OpenInterest, 64)
	return marketdata.OpenInterest{Value: value}, nil
}

// GetHistoricalCandles warms the candle cache on startup.
func (b *Binance) GetHistoricalCandles(ctx context.Context, symbol, tf string, limit int) ([]marketdata.Candle, error) {
	klines, err := b.client.NewKlinesService().Symbol(symbol).Interval(tf).Limit(limit).Do(ctx)
	if err != nil {
		return nil, classifyError(err)
	}
	out := make([]marketdata.Candle, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closeP, _ := strconv.ParseFloat(k.Close, 64)
		vol, _ := strconv.ParseFloat(k.Volume, 64)
		out = append(out, marketdata.Candle{
			Symbol: symbol, Timeframe: tf, OpenTime: k.OpenTime,
			Open: open, High: high, Low: low, Close: closeP, Volume: vol,
		})
	}
	return out, nil
}

// GetAvailableBalance returns the USDT wallet balance available for margin.
func (b *Binance) GetAvailableBalance(ctx context.Context) (float64, error) {
	balances, err := b.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, classifyError(err)
	}
	for _, bal := range balances {
		if bal.Asset == "USDT" {
			v, _ := strconv.ParseFloat(bal.AvailableBalance, 64)
			return v, nil
		}
	}
	return 0, nil
}

func (b *Binance) GetSymbolPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil || len(prices) == 0 {
		return 0, classifyError(err)
	}
	p, _ := strconv.ParseFloat(prices[0].Price, 64)
	return p, nil
}

func (b *Binance) GetOpenPositions(ctx context.Context) ([]ExchangePosition, error) {
	risks, err := b.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, classifyError(err)
	}
	out := make([]ExchangePosition, 0, len(risks))
	for _, r := range risks {
		qty, _ := strconv.ParseFloat(r.PositionAmt, 64)
		if qty == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		lev, _ := strconv.Atoi(r.Leverage)
		out = append(out, ExchangePosition{Symbol: r.Symbol, Quantity: qty, EntryPrice: entry, Leverage: lev})
	}
	return out, nil
}

func (b *Binance) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := b.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
	if err != nil {
		cls := classifyError(err)
		if cls == ErrInvalid {
			// Leverage already at requested value, or symbol-specific
			// rejection the donor's ExecuteTrade treats as non-fatal.
			return nil
		}
		return cls
	}
	return nil
}

func (b *Binance) CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderResult, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(req.Type)).
		Quantity(formatFloat(req.Quantity))

	if req.Price > 0 {
		svc = svc.Price(formatFloat(req.Price))
	}
	if req.TIF != "" {
		svc = svc.TimeInForce(futures.TimeInForceType(req.TIF))
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return OrderResult{}, classifyError(err)
	}
	return fromCreateResponse(resp), nil
}

func (b *Binance) QueryOrder(ctx context.Context, symbol string, orderID int64) (OrderResult, error) {
	resp, err := b.client.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return OrderResult{}, classifyError(err)
	}
	filled, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	avg, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	return OrderResult{
		OrderID: resp.OrderID, Symbol: resp.Symbol,
		Status: OrderStatus(resp.Status), FilledQty: filled, AvgFillPrice: avg,
	}, nil
}

func (b *Binance) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	_, err := b.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	return classifyError(err)
}

// CreateTpSlOrder places the combined STOP_MARKET (SL) + TAKE_PROFIT_MARKET
// (TP) pair as reduce-only orders sized by req.SLQty and req.TPQty. The donor's
// placeProtectionOrders treats TP failure as non-fatal but SL failure as
// fatal — preserved here.
func (b *Binance) CreateTpSlOrder(ctx context.Context, req TpSlRequest) (tpOrderID, slOrderID int64, err error) {
	slResp, slErr := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(TypeStopMarket)).
		StopPrice(formatFloat(req.SLTrigger)).
		Quantity(formatFloat(req.SLQty)).
		ReduceOnly(true).
		Do(ctx)
	if slErr != nil {
		return 0, 0, fmt.Errorf("stop-loss order failed: %w", classifyError(slErr))
	}
	slOrderID = slResp.OrderID

	tpResp, tpErr := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(TypeTakeProfitMkt)).
		StopPrice(formatFloat(req.TPTrigger)).
		Quantity(formatFloat(req.TPQty)).
		ReduceOnly(true).
		Do(ctx)
	if tpErr != nil {
		b.log.Warn().Err(tpErr).Str("symbol", req.Symbol).Msg("take-profit order failed, continuing with SL only")
		return 0, slOrderID, nil
	}
	return tpResp.OrderID, slOrderID, nil
}

func (b *Binance) CancelAllAlgoOrders(ctx context.Context, symbol string) error {
	return classifyError(b.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx))
}

func (b *Binance) GetOpenAlgoOrders(ctx context.Context, symbol string) ([]AlgoOrder, error) {
	orders, err := b.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, classifyError(err)
	}
	out := make([]AlgoOrder, 0, len(orders))
	for _, o := range orders {
		switch futures.OrderType(o.Type) {
		case futures.OrderType(TypeStop), futures.OrderType(TypeStopMarket), futures.OrderType(TypeTakeProfit), futures.OrderType(TypeTakeProfitMkt):
		default:
			continue
		}
		qty, _ := strconv.ParseFloat(o.OrigQuantity, 64)
		trigger, _ := strconv.ParseFloat(o.StopPrice, 64)
		out = append(out, AlgoOrder{
			OrderID: o.OrderID, Symbol: o.Symbol, Type: OrderType(o.Type),
			Side: Side(o.Side), Quantity: qty, TriggerPrice: trigger,
			ClosePosition: o.ClosePosition,
		})
	}
	return out, nil
}

func (b *Binance) GetLotSizeInfo(ctx context.Context, symbol string) (float64, error) {
	if err := b.ensureExchangeInfo(ctx, symbol); err != nil {
		return 0, err
	}
	return b.info.Get(symbol).LotSize, nil
}

func (b *Binance) GetTickSize(ctx context.Context, symbol string) (float64, error) {
	if err := b.ensureExchangeInfo(ctx, symbol); err != nil {
		return 0, err
	}
	return b.info.Get(symbol).TickSize, nil
}

// ensureExchangeInfo lazily fetches and caches precision filters, mirroring
// the donor's FetchExchangeInfo/getPrecision pattern but as a single cache
// shared by every call site instead of duplicated per execution path.
func (b *Binance) ensureExchangeInfo(ctx context.Context, symbol string) error {
	if b.info.Has(symbol) {
		return nil // already populated
	}

	exInfo, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return classifyError(err)
	}
	for _, s := range exInfo.Symbols {
		var tick, lot float64
		for _, f := range s.Filters {
			switch f["filterType"] {
			case "PRICE_FILTER":
				tick, _ = strconv.ParseFloat(f["tickSize"].(string), 64)
			case "LOT_SIZE":
				lot, _ = strconv.ParseFloat(f["stepSize"].(string), 64)
			}
		}
		b.info.Set(s.Symbol, SymbolInfo{TickSize: tick, LotSize: lot})
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fromCreateResponse(resp *futures.CreateOrderResponse) OrderResult {
	filled, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	avg, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	return OrderResult{
		OrderID: resp.OrderID, ClientOrderID: resp.ClientOrderID, Symbol: resp.Symbol,
		Status: OrderStatus(resp.Status), FilledQty: filled, AvgFillPrice: avg,
	}
}
