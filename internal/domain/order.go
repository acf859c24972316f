package domain

import (
	"context"
	"math/big"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeGTD OrderType = "GTD" // Good-Till-Date
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
	OrderTypeFAK OrderType = "FAK" // Fill-And-Kill
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusMatched   OrderStatus = "matched"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusSimulated OrderStatus = "simulated"
)

// TradeMode selects between simulated and real order placement.
type TradeMode string

const (
	TradeModePaper TradeMode = "PAPER"
	TradeModeLive  TradeMode = "LIVE"
)

// Order is transient: built by the execution loop, handed to an order sink
// and discarded once the result is journaled. Up/down markets are always
// entered with a BUY of the outcome token matching Direction.
type Order struct {
	ID          string
	MarketID    string
	TokenID     string
	Wallet      string
	Direction   Direction
	Side        OrderSide
	Type        OrderType
	AmountUSD   float64
	LimitPrice  float64
	Mode        TradeMode
	MakerAmount *big.Int // integer notional used in signed payload
	TakerAmount *big.Int // integer quantity used in signed payload
	Signature   string   // EIP-712 hex
	CreatedAt   time.Time
}

// Shares returns the outcome-token quantity bought for AmountUSD at
// LimitPrice.
func (o Order) Shares() float64 {
	if o.LimitPrice <= 0 {
		return 0
	}
	return o.AmountUSD / o.LimitPrice
}

// OrderResult wraps the sink's response after submission.
type OrderResult struct {
	Success      bool
	OrderID      string
	Status       OrderStatus
	FilledAmount float64 // USD
	FilledPrice  float64
	Message      string
	ShouldRetry  bool
	BalanceAfter float64
}

// OrderSink places orders. The paper implementation simulates locally; the
// live implementation submits to the exchange.
type OrderSink interface {
	PlaceOrder(ctx context.Context, order Order) (OrderResult, error)
	Mode() TradeMode
}

// BalanceSource reports the account's spendable USD balance.
type BalanceSource interface {
	Balance(ctx context.Context) (float64, error)
}
