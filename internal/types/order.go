// Package types holds the value types shared across every actor: orders,
// trades, responses, and the index price stream. None of these carry
// behavior beyond simple constructors — the matching and risk logic that
// operates on them lives in internal/book and internal/position.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is which side of the book an order sits on.
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// OrderType distinguishes resting limit orders from immediate-or-discard
// market orders.
type OrderType int

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	if t == Limit {
		return "limit"
	}
	return "market"
}

// Status values an OrderResponse can carry.
const (
	StatusFilled                 = "filled"
	StatusResting                = "resting"
	StatusMarketUnfilledResidual = "market_unfilled_residual"
)

// OrderResponse is the single reply sent back on an Order's responder
// channel once the order reaches a terminal state.
type OrderResponse struct {
	Status    string
	Filled    decimal.Decimal
	Remaining decimal.Decimal
}

// Order is a client or liquidation order traveling through the book.
// Price is meaningless for Market orders. Amount is the remaining
// quantity and is mutated in place as the book matches it — callers
// must not share an Order across goroutines except via the channels it
// travels on.
type Order struct {
	ID       string
	UserID   string
	Type     OrderType
	Side     Side
	Price    decimal.Decimal
	Amount   decimal.Decimal
	Leverage decimal.Decimal

	// Liquidation marks an order synthesized by PositionTracker rather
	// than a client submission. Liquidation orders carry no responder.
	Liquidation bool

	responder chan OrderResponse
}

// NewClientOrder builds an order for a client submission and returns the
// channel its single response will arrive on. The channel has capacity
// one so the book never blocks sending the reply.
func NewClientOrder(id, userID string, typ OrderType, side Side, price, amount, leverage decimal.Decimal) (Order, <-chan OrderResponse) {
	reply := make(chan OrderResponse, 1)
	return Order{
		ID:       id,
		UserID:   userID,
		Type:     typ,
		Side:     side,
		Price:    price,
		Amount:   amount,
		Leverage: leverage,

		responder: reply,
	}, reply
}

// NewLiquidationOrder builds a MARKET order synthesized by the risk
// engine. It carries no responder — liquidation orders are fire and
// forget from the caller's perspective; the resulting Trade is what
// PositionTracker consumes.
func NewLiquidationOrder(id, userID string, side Side, amount decimal.Decimal) Order {
	return Order{
		ID:          id,
		UserID:      userID,
		Type:        Market,
		Side:        side,
		Price:       decimal.Zero,
		Amount:      amount,
		Leverage:    decimal.NewFromInt(1),
		Liquidation: true,
	}
}

// Reply signals the order's responder exactly once. It is a no-op for
// orders with no responder (liquidation orders) and safe to call when
// the caller already gave up listening: the buffered channel absorbs
// the send and is simply never read again.
func (o *Order) Reply(resp OrderResponse) {
	if o.responder == nil {
		return
	}
	select {
	case o.responder <- resp:
	default:
		// Already replied once; the buffer-of-one contract means this
		// should never trigger in practice, but it guarantees Reply
		// never blocks or panics if it does.
	}
	o.responder = nil
}

// HasResponder reports whether this order still owes a client a reply.
func (o *Order) HasResponder() bool {
	return o.responder != nil
}

// Trade is emitted atomically with the matching step that produced it.
// Price is always the maker's (resting order's) price.
type Trade struct {
	LongID        string
	ShortID       string
	LongLeverage  decimal.Decimal
	ShortLeverage decimal.Decimal
	Amount        decimal.Decimal
	Price         decimal.Decimal
	Timestamp     time.Time
}

// IndexPrice is one tick of the oracle's simulated index price stream.
type IndexPrice struct {
	Timestamp time.Time
	Price     decimal.Decimal
	EMA       decimal.Decimal
}
