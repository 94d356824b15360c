package book

import (
	"context"

	"perpion/internal/types"
)

// Request asks the book actor to process either a normal order or a
// debug Snapshot without interleaving with an in-flight match. It
// travels tagged: Request carries either an Order or a DebugReply,
// never both.
type Request struct {
	Order      *types.Order
	DebugReply chan<- BookView
}

// Run is the book's actor loop. It is biased toward the liquidation
// lane: on every wakeup it drains liqIn completely (non-blocking) before
// taking at most one item from normalIn, then loops. This guarantees
// liquidations are never starved by client traffic.
func (b *OrderBook) Run(ctx context.Context, normalIn <-chan Request, liqIn <-chan types.Order) {
	for {
		// Drain the liquidation lane first, completely, every wakeup.
		for drained := true; drained; {
			select {
			case order, ok := <-liqIn:
				if !ok {
					liqIn = nil
					drained = false
					continue
				}
				b.Submit(order)
			default:
				drained = false
			}
		}

		select {
		case <-ctx.Done():
			return

		case order, ok := <-liqIn:
			if !ok {
				liqIn = nil
				continue
			}
			b.Submit(order)

		case req, ok := <-normalIn:
			if !ok {
				normalIn = nil
				continue
			}
			b.handleRequest(req)
		}

		if liqIn == nil && normalIn == nil {
			return
		}
	}
}

func (b *OrderBook) handleRequest(req Request) {
	if req.DebugReply != nil {
		view := b.Snapshot()
		select {
		case req.DebugReply <- view:
		default:
		}
		return
	}
	if req.Order != nil {
		b.Submit(*req.Order)
	}
}
