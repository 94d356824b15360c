package position_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpion/internal/position"
	"perpion/internal/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeWallet struct {
	balances map[string]decimal.Decimal
	denyAll  bool
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{balances: map[string]decimal.Decimal{"exchange": dec("10000000")}}
}

func (w *fakeWallet) Debit(accountID string, amount decimal.Decimal) (bool, string) {
	if w.denyAll {
		return false, "insufficient_balance"
	}
	bal, ok := w.balances[accountID]
	if !ok {
		bal = dec("1000000")
	}
	if bal.LessThan(amount) {
		return false, "insufficient_balance"
	}
	w.balances[accountID] = bal.Sub(amount)
	return true, ""
}

func (w *fakeWallet) Credit(accountID string, amount decimal.Decimal) {
	bal, ok := w.balances[accountID]
	if !ok {
		bal = dec("1000000")
	}
	w.balances[accountID] = bal.Add(amount)
}

type fakeBroadcaster struct{ trades []types.Trade }

func (b *fakeBroadcaster) Broadcast(trade types.Trade) { b.trades = append(b.trades, trade) }

func newTracker(liqOut chan types.Order, wallet *fakeWallet) *position.PositionTracker {
	n := 0
	idGen := func() string { n++; return "liq-id" }
	return position.New(liqOut, wallet, &fakeBroadcaster{}, nil, nil, 4, idGen)
}

func TestOnTradeOpensBothSides(t *testing.T) {
	liqOut := make(chan types.Order, 8)
	tracker := newTracker(liqOut, newFakeWallet())

	tracker.OnTrade(types.Trade{
		LongID: "alice", ShortID: "bob",
		LongLeverage: dec("2"), ShortLeverage: dec("4"),
		Amount: dec("1"), Price: dec("100"),
	})

	alice, ok := tracker.Position("alice")
	require.True(t, ok)
	assert.True(t, alice.Size.Equal(dec("1")))
	assert.True(t, alice.EntryPrice.Equal(dec("100")))
	assert.True(t, alice.Margin.Equal(dec("50"))) // 100*1/2

	bob, ok := tracker.Position("bob")
	require.True(t, ok)
	assert.True(t, bob.Size.Equal(dec("-1")))
	assert.True(t, bob.Margin.Equal(dec("25"))) // 100*1/4
}

func TestOnTradeGrowsSameDirection(t *testing.T) {
	liqOut := make(chan types.Order, 8)
	tracker := newTracker(liqOut, newFakeWallet())

	tracker.OnTrade(types.Trade{LongID: "alice", ShortID: "bob", LongLeverage: dec("1"), ShortLeverage: dec("1"), Amount: dec("1"), Price: dec("100")})
	tracker.OnTrade(types.Trade{LongID: "alice", ShortID: "carol", LongLeverage: dec("1"), ShortLeverage: dec("1"), Amount: dec("1"), Price: dec("200")})

	alice, ok := tracker.Position("alice")
	require.True(t, ok)
	assert.True(t, alice.Size.Equal(dec("2")))
	assert.True(t, alice.EntryPrice.Equal(dec("150"))) // (100*1+200*1)/2
	assert.True(t, alice.Margin.Equal(dec("300")))     // 100 + 200
}

func TestOnTradePartialReduceWithoutFlip(t *testing.T) {
	liqOut := make(chan types.Order, 8)
	tracker := newTracker(liqOut, newFakeWallet())

	tracker.OnTrade(types.Trade{LongID: "alice", ShortID: "bob", LongLeverage: dec("1"), ShortLeverage: dec("1"), Amount: dec("2"), Price: dec("100")})
	// alice sells 1: short leg of a trade where alice is now the short side.
	tracker.OnTrade(types.Trade{LongID: "dave", ShortID: "alice", LongLeverage: dec("1"), ShortLeverage: dec("1"), Amount: dec("1"), Price: dec("110")})

	alice, ok := tracker.Position("alice")
	require.True(t, ok)
	assert.True(t, alice.Size.Equal(dec("1")))
	assert.True(t, alice.Margin.Equal(dec("90"))) // 200 - 110
}

func TestOnTradeFlipSplitsClosingAndOpeningLegs(t *testing.T) {
	liqOut := make(chan types.Order, 8)
	tracker := newTracker(liqOut, newFakeWallet())

	tracker.OnTrade(types.Trade{LongID: "alice", ShortID: "bob", LongLeverage: dec("1"), ShortLeverage: dec("1"), Amount: dec("1"), Price: dec("100")})
	// alice sells 3 against dave: closes her 1 long, opens a 2 short.
	tracker.OnTrade(types.Trade{LongID: "dave", ShortID: "alice", LongLeverage: dec("1"), ShortLeverage: dec("1"), Amount: dec("3"), Price: dec("120")})

	alice, ok := tracker.Position("alice")
	require.True(t, ok)
	assert.True(t, alice.Size.Equal(dec("-2")))
	assert.True(t, alice.EntryPrice.Equal(dec("120")))
	// closing leg releases 100*1/1=100, opening leg locks 120*2/1=240.
	assert.True(t, alice.Margin.Equal(dec("240")))
}

func TestOnTradeFlatPositionIsRemoved(t *testing.T) {
	liqOut := make(chan types.Order, 8)
	tracker := newTracker(liqOut, newFakeWallet())

	tracker.OnTrade(types.Trade{LongID: "alice", ShortID: "bob", LongLeverage: dec("1"), ShortLeverage: dec("1"), Amount: dec("1"), Price: dec("100")})
	tracker.OnTrade(types.Trade{LongID: "bob", ShortID: "alice", LongLeverage: dec("1"), ShortLeverage: dec("1"), Amount: dec("1"), Price: dec("100")})

	_, ok := tracker.Position("alice")
	assert.False(t, ok)
	_, ok = tracker.Position("bob")
	assert.False(t, ok)
}

func TestFundingRateClampedToBand(t *testing.T) {
	liqOut := make(chan types.Order, 8)
	tracker := newTracker(liqOut, newFakeWallet())

	tracker.OnTrade(types.Trade{LongID: "a", ShortID: "b", LongLeverage: dec("1"), ShortLeverage: dec("1"), Amount: dec("1"), Price: dec("1000")})
	tracker.OnIndexPrice(types.IndexPrice{Price: dec("1")})

	rate := tracker.CurrentFundingRate()
	assert.True(t, rate.Equal(dec("0.00075")), "expected clamp to upper bound, got %s", rate)
}

func TestLiquidationSubmittedOnBreach(t *testing.T) {
	liqOut := make(chan types.Order, 8)
	tracker := newTracker(liqOut, newFakeWallet())

	tracker.OnTrade(types.Trade{LongID: "alice", ShortID: "bob", LongLeverage: dec("10"), ShortLeverage: dec("10"), Amount: dec("1"), Price: dec("100")})

	// Crash the index price so alice's long is deep underwater relative
	// to her thin 10x margin.
	tracker.OnIndexPrice(types.IndexPrice{Price: dec("50")})

	select {
	case order := <-liqOut:
		assert.Equal(t, "alice", order.UserID)
		assert.Equal(t, types.Ask, order.Side)
		assert.True(t, order.Liquidation)
	default:
		t.Fatal("expected a liquidation order to be submitted")
	}
}

func TestLiquidationNotResubmittedWhileInFlight(t *testing.T) {
	liqOut := make(chan types.Order, 8)
	tracker := newTracker(liqOut, newFakeWallet())

	tracker.OnTrade(types.Trade{LongID: "alice", ShortID: "bob", LongLeverage: dec("10"), ShortLeverage: dec("10"), Amount: dec("1"), Price: dec("100")})
	tracker.OnIndexPrice(types.IndexPrice{Price: dec("50")})
	tracker.OnIndexPrice(types.IndexPrice{Price: dec("49")})

	assert.Len(t, liqOut, 1)
}

func TestSettleFundingLiquidatesOnFailedDebit(t *testing.T) {
	liqOut := make(chan types.Order, 8)
	wallet := newFakeWallet()
	tracker := newTracker(liqOut, wallet)

	tracker.OnTrade(types.Trade{LongID: "alice", ShortID: "bob", LongLeverage: dec("1"), ShortLeverage: dec("1"), Amount: dec("1"), Price: dec("1000")})

	// An index just under the trade price gives a small positive funding
	// rate (longs pay) while leaving alice well clear of the risk
	// threshold, so the only liquidation comes from the failed debit at
	// the fourth tick's funding settlement.
	wallet.denyAll = true
	for i := 0; i < 4; i++ {
		tracker.OnIndexPrice(types.IndexPrice{Price: dec("999")})
	}

	require.Len(t, liqOut, 1)
	order := <-liqOut
	assert.Equal(t, "alice", order.UserID)
}
