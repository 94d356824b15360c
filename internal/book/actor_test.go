package book_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpion/internal/book"
	"perpion/internal/types"
)

// The liquidation lane must be drained ahead of the normal order lane
// whenever both have work waiting. Two resting asks from different
// makers give us FIFO order to observe: if the liquidation order is
// serviced first it takes the front of the queue, and its trade must
// appear on the bus before the normal order's.
func TestActorRunPrioritizesLiquidationLane(t *testing.T) {
	trades := make(chan types.Trade, 8)
	b := book.New(trades, nil, nil)

	restAsk := func(userID, amount string) {
		order, reply := types.NewClientOrder(uuid.NewString(), userID, types.Limit, types.Ask, decimal.NewFromInt(100), dec(amount), decimal.NewFromInt(1))
		b.Submit(order)
		resp := <-reply
		require.Equal(t, types.StatusResting, resp.Status)
	}
	restAsk("first-maker", "1")
	restAsk("second-maker", "1")

	normalIn := make(chan book.Request, 1)
	liqIn := make(chan types.Order, 1)

	normalOrder, normalReply := types.NewClientOrder(uuid.NewString(), "normal-taker", types.Limit, types.Bid, decimal.NewFromInt(100), dec("1"), decimal.NewFromInt(1))
	normalIn <- book.Request{Order: &normalOrder}

	liqOrder := types.NewLiquidationOrder(uuid.NewString(), "liq-taker", types.Bid, dec("1"))
	liqIn <- liqOrder

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, normalIn, liqIn)

	first := <-trades
	assert.Equal(t, "first-maker", first.ShortID, "the liquidation lane should be serviced before the normal lane")

	second := <-trades
	assert.Equal(t, "second-maker", second.ShortID)

	select {
	case resp := <-normalReply:
		assert.Equal(t, types.StatusFilled, resp.Status)
	case <-time.After(time.Second):
		t.Fatal("normal order was never answered")
	}
}
