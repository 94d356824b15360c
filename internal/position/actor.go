package position

import (
	"context"

	"perpion/internal/types"
)

// Run is the risk engine's actor loop: every matched trade and every
// oracle tick passes through here, one at a time, which is what lets
// PositionTracker's methods stay lock-free.
func (pt *PositionTracker) Run(ctx context.Context, trades <-chan types.Trade, indexTicks <-chan types.IndexPrice) {
	for {
		select {
		case <-ctx.Done():
			return

		case trade, ok := <-trades:
			if !ok {
				trades = nil
				break
			}
			pt.OnTrade(trade)

		case tick, ok := <-indexTicks:
			if !ok {
				indexTicks = nil
				break
			}
			pt.OnIndexPrice(tick)
		}

		if trades == nil && indexTicks == nil {
			return
		}
	}
}
