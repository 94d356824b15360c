// Package book implements the central limit order book: price-time
// priority matching over bid/ask price levels, with a biased
// liquidation lane that always drains ahead of normal client traffic.
package book

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"perpion/internal/types"
)

// PriceLevel is an insertion-ordered queue of orders resting at one
// price. Orders is a FIFO: new orders are appended, matches consume
// from the front.
type PriceLevel struct {
	Price  decimal.Decimal
	Orders []*types.Order
}

type priceLevels = btree.BTreeG[*PriceLevel]

// OrderBook maintains both sides of the book for the single supported
// instrument. bestBid/bestAsk are caches kept consistent by every
// mutating operation; the test suite checks they never cross after
// Submit returns.
type OrderBook struct {
	bids *priceLevels // sorted descending by price
	asks *priceLevels // sorted ascending by price

	bestBid *decimal.Decimal
	bestAsk *decimal.Decimal

	tradeOut chan<- types.Trade
	logger   Logger
	metrics  Metrics
}

// Logger is the minimal structured-logging surface OrderBook needs so
// tests can swap in a no-op without pulling in zerolog.
type Logger interface {
	Warn(msg string, fields map[string]any)
}

// Metrics is the minimal instrumentation surface OrderBook reports
// top-of-book depth to. nil is a valid, no-op value.
type Metrics interface {
	SetDepth(side string, depth decimal.Decimal)
}

// New constructs an empty OrderBook. tradeOut is the (unbounded) trade
// bus every matched pair is published to before the submitting order's
// responder is signaled.
func New(tradeOut chan<- types.Trade, logger Logger, metrics Metrics) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GreaterThan(b.Price) // descending: best bid first
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price) // ascending: best ask first
	})
	return &OrderBook{
		bids:     bids,
		asks:     asks,
		tradeOut: tradeOut,
		logger:   logger,
		metrics:  metrics,
	}
}

// BookView is a read-only rendering of the book for debug/telemetry.
type BookView struct {
	Bids []LevelView
	Asks []LevelView
}

// LevelView summarizes one resting price level.
type LevelView struct {
	Price decimal.Decimal
	Depth decimal.Decimal // sum of remaining order amounts
	Count int
}

// Snapshot renders the current book. It never mutates state.
func (b *OrderBook) Snapshot() BookView {
	view := BookView{}
	b.bids.Scan(func(level *PriceLevel) bool {
		view.Bids = append(view.Bids, levelView(level))
		return true
	})
	b.asks.Scan(func(level *PriceLevel) bool {
		view.Asks = append(view.Asks, levelView(level))
		return true
	})
	return view
}

func levelView(level *PriceLevel) LevelView {
	depth := decimal.Zero
	for _, o := range level.Orders {
		depth = depth.Add(o.Amount)
	}
	return LevelView{Price: level.Price, Depth: depth, Count: len(level.Orders)}
}

// BestBid and BestAsk expose the cached top of book; ok is false when
// that side is empty.
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	if b.bestBid == nil {
		return decimal.Decimal{}, false
	}
	return *b.bestBid, true
}

func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if b.bestAsk == nil {
		return decimal.Decimal{}, false
	}
	return *b.bestAsk, true
}

func (b *OrderBook) refreshBest() {
	if top, ok := b.bids.Min(); ok {
		p := top.Price
		b.bestBid = &p
		b.reportDepth("bid", top)
	} else {
		b.bestBid = nil
		b.reportDepth("bid", nil)
	}
	if top, ok := b.asks.Min(); ok {
		p := top.Price
		b.bestAsk = &p
		b.reportDepth("ask", top)
	} else {
		b.bestAsk = nil
		b.reportDepth("ask", nil)
	}
}

// reportDepth publishes the resting quantity at a side's best price
// level to the Metrics collaborator; level is nil when that side is
// empty.
func (b *OrderBook) reportDepth(side string, level *PriceLevel) {
	if b.metrics == nil {
		return
	}
	depth := decimal.Zero
	if level != nil {
		depth = levelView(level).Depth
	}
	b.metrics.SetDepth(side, depth)
}

// Submit inserts a client or liquidation order and runs matching. It
// returns the order's terminal OrderResponse; for client orders the
// same response has already been pushed onto the order's responder
// exactly once by the time Submit returns.
func (b *OrderBook) Submit(order types.Order) types.OrderResponse {
	var resp types.OrderResponse
	switch order.Side {
	case types.Bid:
		resp = b.submitBid(order)
	case types.Ask:
		resp = b.submitAsk(order)
	}
	b.refreshBest()
	return resp
}

// emitTrade pushes onto the unbounded trade bus. The bus is sized so a
// send never legitimately blocks on capacity; the only failure mode is
// the bus having been torn down during shutdown, which panics on send
// to a closed channel. That failure is logged and swallowed — the book
// stays authoritative regardless of whether downstream delivery
// succeeded.
func (b *OrderBook) emitTrade(trade types.Trade) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Warn("failed to enqueue trade", map[string]any{
				"long_id": trade.LongID, "short_id": trade.ShortID, "panic": r,
			})
		}
	}()
	b.tradeOut <- trade
}

func now() time.Time { return time.Now() }
