// Package position implements the risk engine: it tracks every
// account's leveraged exposure, marks positions against the oracle's
// index price, accrues and settles funding, and liquidates accounts
// whose collateral falls through the maintenance threshold by
// synthesizing opposite market orders back onto the order book's
// liquidation lane.
package position

import (
	"github.com/shopspring/decimal"

	"perpion/internal/types"
)

// LiquidationThreshold is the ratio of (margin + unrealized PnL) to
// margin below which a position is force-closed.
var LiquidationThreshold = decimal.NewFromFloat(0.8)

// FundingDampening and the funding rate clamp bounds.
var (
	FundingDampening = decimal.NewFromFloat(0.05)
	fundingRateMin   = decimal.NewFromFloat(-0.00075)
	fundingRateMax   = decimal.NewFromFloat(0.00075)
)

// FundingWindowSize bounds the ring of recent funding rate samples.
const FundingWindowSize = 60

// Position is one account's signed exposure in the single supported
// instrument. A flat account (Size == 0) has no entry in the tracker's
// map at all.
type Position struct {
	UserID        string
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	Margin        decimal.Decimal
	UnrealizedPnL decimal.Decimal

	// liquidating is set the moment a liquidation MARKET order is
	// synthesized so a re-breach detected before the resulting trade
	// lands doesn't submit a second liquidation for the same position.
	// Cleared when the position is removed (flat) or when a later risk
	// pass finds it no longer breached.
	liquidating bool
}

// WalletClient is the collaborator PositionTracker debits/credits for
// funding settlement. Implemented by internal/wallet.Client.
type WalletClient interface {
	Debit(accountID string, amount decimal.Decimal) (ok bool, reason string)
	Credit(accountID string, amount decimal.Decimal)
}

// TradeBroadcaster fans a matched trade out to subscribed WebSocket
// clients. Implemented by internal/httpapi.Hub.
type TradeBroadcaster interface {
	Broadcast(trade types.Trade)
}

// Logger is the minimal structured-logging surface PositionTracker
// needs.
type Logger interface {
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
}

// Metrics is the minimal instrumentation surface PositionTracker
// reports to. Implemented by internal/engine's Prometheus adapter; nil
// is a valid, no-op value.
type Metrics interface {
	RecordLiquidation()
	RecordFundingRate(rate decimal.Decimal)
	RecordMarkPrice(mark decimal.Decimal)
}

const exchangeAccount = "exchange"

// PositionTracker owns every account's position and the funding
// state. All of its exported methods are meant to be invoked only from
// its own actor goroutine (internal/position.Run) — it holds no locks
// because exactly one goroutine ever touches this state.
type PositionTracker struct {
	positions map[string]*Position

	liquidationOut chan<- types.Order
	wallet         WalletClient
	broadcaster    TradeBroadcaster
	logger         Logger
	metrics        Metrics

	lastTradePrice     decimal.Decimal
	markPrice          decimal.Decimal
	currentFundingRate decimal.Decimal
	fundingWindow      []decimal.Decimal

	fundingIntervalTicks int
	ticksSinceFunding    int

	idGen func() string
}

// New constructs a PositionTracker. fundingIntervalTicks is how many
// oracle ticks elapse between funding settlements. Strict wall-clock
// semantics aren't required, so the cadence is expressed in ticks of
// whatever cadence the oracle runs at.
func New(liquidationOut chan<- types.Order, wallet WalletClient, broadcaster TradeBroadcaster, logger Logger, metrics Metrics, fundingIntervalTicks int, idGen func() string) *PositionTracker {
	return &PositionTracker{
		positions:            make(map[string]*Position),
		liquidationOut:       liquidationOut,
		wallet:               wallet,
		broadcaster:          broadcaster,
		logger:               logger,
		metrics:              metrics,
		lastTradePrice:       decimal.Zero,
		markPrice:            decimal.Zero,
		currentFundingRate:   decimal.Zero,
		fundingIntervalTicks: fundingIntervalTicks,
		idGen:                idGen,
	}
}

// Position returns a copy of the tracked position for userID, if any.
func (pt *PositionTracker) Position(userID string) (Position, bool) {
	p, ok := pt.positions[userID]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// CurrentFundingRate exposes the last computed funding rate (for
// telemetry).
func (pt *PositionTracker) CurrentFundingRate() decimal.Decimal {
	return pt.currentFundingRate
}

// MarkPrice exposes the last computed mark price (for telemetry).
func (pt *PositionTracker) MarkPrice() decimal.Decimal {
	return pt.markPrice
}

// OnTrade applies a matched trade to both counterparties' positions and
// rebroadcasts it to subscribed clients. It must be called in match
// order, which the trade bus guarantees.
func (pt *PositionTracker) OnTrade(trade types.Trade) {
	pt.lastTradePrice = trade.Price

	pt.applyFill(trade.LongID, trade.Amount, trade.Price, trade.LongLeverage)
	pt.applyFill(trade.ShortID, trade.Amount.Neg(), trade.Price, trade.ShortLeverage)

	if pt.broadcaster != nil {
		pt.broadcaster.Broadcast(trade)
	}
}

// applyFill updates one side of a trade. delta is signed: +amount for
// the long leg, -amount for the short leg. amount is always the
// unsigned trade quantity, used verbatim in the entry-price and margin
// formulas.
func (pt *PositionTracker) applyFill(userID string, delta, price, leverage decimal.Decimal) {
	amount := delta.Abs()

	existing, ok := pt.positions[userID]
	if !ok {
		pt.positions[userID] = &Position{
			UserID:        userID,
			Size:          delta,
			EntryPrice:    price,
			Margin:        price.Mul(amount).Div(leverage),
			UnrealizedPnL: decimal.Zero,
		}
		return
	}

	s := existing.Size
	newSize := s.Add(delta)

	if newSize.IsZero() {
		delete(pt.positions, userID)
		return
	}

	if signFlips(s, newSize) {
		// A trade that flips the position's sign splits into an explicit
		// closing leg, which releases margin for the closed quantity at
		// the old entry price, and an opening leg, whose entry price is
		// simply this trade's price since no prior exposure in the new
		// direction exists to average against.
		closingAmount := s.Abs()
		openingAmount := amount.Sub(closingAmount)

		existing.Margin = existing.Margin.Sub(existing.EntryPrice.Mul(closingAmount).Div(leverage))
		existing.Margin = existing.Margin.Add(price.Mul(openingAmount).Div(leverage))
		existing.EntryPrice = price
		existing.Size = newSize
		return
	}

	existing.EntryPrice = existing.EntryPrice.Mul(s).Add(price.Mul(amount)).Div(newSize)
	existing.Size = newSize

	if sameSign(newSize, delta) {
		existing.Margin = existing.Margin.Add(price.Mul(amount).Div(leverage))
	} else {
		existing.Margin = existing.Margin.Sub(price.Mul(amount).Div(leverage))
	}
}

func signFlips(before, after decimal.Decimal) bool {
	return !before.IsZero() && !after.IsZero() && before.Sign() != after.Sign()
}

func sameSign(a, b decimal.Decimal) bool {
	return a.Sign() == b.Sign()
}
