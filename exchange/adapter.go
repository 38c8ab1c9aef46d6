// Package exchange implements the typed façade (ExchangeAdapter) over the
// exchange's REST+WS surface, plus the reference Binance USDT-M futures
// implementation.
package exchange

import (
	"context"

	"github.com/yjx-labs/swapscalp/marketdata"
)

// Side is the order side.
type Side string

const (
	Buy Side = "BUY"
	Sell Side = "SELL"
)

// OrderType covers the subset of order types this engine submits.
type OrderType string

const (
	TypeLimit OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
	TypeStop OrderType = "STOP"
	TypeStopMarket OrderType = "STOP_MARKET"
	TypeTakeProfit OrderType = "TAKE_PROFIT"
	TypeTakeProfitMkt OrderType = "TAKE_PROFIT_MARKET"
)

// TimeInForce covers the TIFs this engine uses.
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	GTX TimeInForce = "GTX" // post-only
)

// OrderStatus is the normalized lifecycle status of a submitted order.
type OrderStatus string

const (
	StatusNew OrderStatus = "NEW"
	StatusFilled OrderStatus = "FILLED"
	StatusPartial OrderStatus = "PARTIALLY_FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusExpired OrderStatus = "EXPIRED"
	StatusRejected OrderStatus = "REJECTED"
)

// CreateOrderRequest is the typed request for a new order.
type CreateOrderRequest struct {
	Symbol string
	Side Side
	Type OrderType
	Quantity float64
	Price float64 // zero for MARKET
	ReduceOnly bool
	TIF TimeInForce
	ClientOrderID string
}

// OrderResult is the normalized order-placement/query response.
type OrderResult struct {
	OrderID int64
	ClientOrderID string
	Symbol string
	Status OrderStatus
	FilledQty float64
	AvgFillPrice float64
}

// TpSlRequest describes a combined algo-order submission.
type TpSlRequest struct {
	Symbol string
	Side Side // the closing side (opposite of the position's entry side)
	TPQty float64
	SLQty float64
	TPTrigger float64
	SLTrigger float64
}

// AlgoOrder is one live exchange-side conditional order.
type AlgoOrder struct {
	OrderID int64
	Symbol string
	Type OrderType
	Side Side
	Quantity float64
	TriggerPrice float64
	ClosePosition bool
}

// ExchangePosition is one live position reported by the exchange.
type ExchangePosition struct {
	Symbol string
	Quantity float64 // signed: positive long, negative short
	EntryPrice float64
	Leverage int
}

// Adapter is the typed façade the core consumes. It embeds
// marketdata.AuxSource so AuxPoller can consume it directly.
type Adapter interface {
	marketdata.AuxSource

	SubscribePublic(symbols []string, timeframes []string)
	IsStreamConnected() bool
	StreamFatal() <-chan error
	// Shutdown requests the streaming session to stop and not reconnect.
	// Idempotent.
	Shutdown()

	GetHistoricalCandles(ctx context.Context, symbol, tf string, limit int) ([]marketdata.Candle, error)
	GetAvailableBalance(ctx context.Context) (float64, error)
	GetSymbolPrice(ctx context.Context, symbol string) (float64, error)
	GetOpenPositions(ctx context.Context) ([]ExchangePosition, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderResult, error)
	QueryOrder(ctx context.Context, symbol string, orderID int64) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	CreateTpSlOrder(ctx context.Context, req TpSlRequest) (tpOrderID, slOrderID int64, err error)
	CancelAllAlgoOrders(ctx context.Context, symbol string) error
	GetOpenAlgoOrders(ctx context.Context, symbol string) ([]AlgoOrder, error)

	GetLotSizeInfo(ctx context.Context, symbol string) (float64, error)
	GetTickSize(ctx context.Context, symbol string) (float64, error)
}
