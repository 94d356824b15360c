package book

import (
	"github.com/shopspring/decimal"

	"perpion/internal/types"
)

// submitBid walks the asks ascending (repeatedly taking the current best
// level), matching the incoming buy order's remaining amount against
// resting sell orders in price-time priority, then rests or discards
// whatever remains.
func (b *OrderBook) submitBid(order types.Order) types.OrderResponse {
	filled := decimal.Zero
	originalAmount := order.Amount

	for !order.Amount.IsZero() {
		level, ok := b.asks.Min()
		if !ok {
			break
		}
		if order.Type == types.Limit && level.Price.GreaterThan(order.Price) {
			break
		}

		consumed := b.matchLevel(&order, level, true)
		if consumed > 0 {
			level.Orders = level.Orders[consumed:]
		}
		if len(level.Orders) == 0 {
			b.asks.Delete(level)
		}
		filled = originalAmount.Sub(order.Amount)
	}

	return b.restOrRespond(&order, filled, types.Bid)
}

// submitAsk is the mirror image of submitBid: walk bids descending.
func (b *OrderBook) submitAsk(order types.Order) types.OrderResponse {
	filled := decimal.Zero
	originalAmount := order.Amount

	for !order.Amount.IsZero() {
		level, ok := b.bids.Min() // comparator sorts bids descending, so Min is best bid
		if !ok {
			break
		}
		if order.Type == types.Limit && level.Price.LessThan(order.Price) {
			break
		}

		consumed := b.matchLevel(&order, level, false)
		if consumed > 0 {
			level.Orders = level.Orders[consumed:]
		}
		if len(level.Orders) == 0 {
			b.bids.Delete(level)
		}
		filled = originalAmount.Sub(order.Amount)
	}

	return b.restOrRespond(&order, filled, types.Ask)
}

// matchLevel consumes the FIFO head of level against the taker order
// until either the level or the taker is exhausted, emitting one Trade
// per fill. takerIsBuyer selects which side of the Trade the taker
// occupies. Returns how many maker orders at the front of the level
// were fully consumed (for the caller to slice off).
func (b *OrderBook) matchLevel(taker *types.Order, level *PriceLevel, takerIsBuyer bool) int {
	consumed := 0
	for consumed < len(level.Orders) {
		head := level.Orders[consumed]
		tradeAmount := decimal.Min(taker.Amount, head.Amount)

		taker.Amount = taker.Amount.Sub(tradeAmount)
		head.Amount = head.Amount.Sub(tradeAmount)

		trade := types.Trade{
			Amount:    tradeAmount,
			Price:     level.Price,
			Timestamp: now(),
		}
		if takerIsBuyer {
			trade.LongID, trade.LongLeverage = taker.UserID, taker.Leverage
			trade.ShortID, trade.ShortLeverage = head.UserID, head.Leverage
		} else {
			trade.LongID, trade.LongLeverage = head.UserID, head.Leverage
			trade.ShortID, trade.ShortLeverage = taker.UserID, taker.Leverage
		}
		b.emitTrade(trade)

		if head.Amount.IsZero() {
			// A resting maker's responder was already consumed (or was
			// nil, for a liquidation order) when it first rested: every
			// order gets exactly one reply, sent at submission time, not
			// at eventual fill time.
			consumed++
		}
		if taker.Amount.IsZero() {
			break
		}
	}
	return consumed
}

// restOrRespond implements the resting step shared by both sides: a
// fully filled order replies filled; a LIMIT with residual rests in its
// own price level; a MARKET with residual discards it.
func (b *OrderBook) restOrRespond(order *types.Order, filled decimal.Decimal, side types.Side) types.OrderResponse {
	if order.Amount.IsZero() {
		resp := types.OrderResponse{Status: types.StatusFilled, Filled: filled, Remaining: decimal.Zero}
		order.Reply(resp)
		return resp
	}

	if order.Type == types.Limit {
		resp := types.OrderResponse{Status: types.StatusResting, Filled: filled, Remaining: order.Amount}
		// Reply before resting: the copy that goes into the price level
		// must not retain a live responder, since a resting order's
		// single reply was already sent here and must never fire again.
		order.Reply(resp)
		b.restLimit(order, side)
		return resp
	}

	resp := types.OrderResponse{Status: types.StatusMarketUnfilledResidual, Filled: filled, Remaining: order.Amount}
	order.Reply(resp)
	return resp
}

func (b *OrderBook) restLimit(order *types.Order, side types.Side) {
	levels := b.bids
	if side == types.Ask {
		levels = b.asks
	}

	resting := *order
	if level, ok := levels.Get(&PriceLevel{Price: order.Price}); ok {
		level.Orders = append(level.Orders, &resting)
		return
	}
	levels.Set(&PriceLevel{Price: order.Price, Orders: []*types.Order{&resting}})
}
