package position

import (
	"github.com/shopspring/decimal"

	"perpion/internal/types"
)

// OnIndexPrice folds one oracle tick into the funding rate and mark
// price, then re-runs the risk pass over every open position.
func (pt *PositionTracker) OnIndexPrice(tick types.IndexPrice) {
	pt.updateFundingRate(tick.Price)
	pt.updateMarkPrice(tick.Price)
	pt.updateRisk()

	pt.ticksSinceFunding++
	if pt.fundingIntervalTicks > 0 && pt.ticksSinceFunding >= pt.fundingIntervalTicks {
		pt.ticksSinceFunding = 0
		pt.settleFunding()
	}
}

// updateFundingRate computes the premium of the last traded price over
// the index, dampens it, clamps it to the configured band, and folds
// the sample into the rolling window.
func (pt *PositionTracker) updateFundingRate(indexPrice decimal.Decimal) {
	if indexPrice.IsZero() {
		return
	}
	if pt.lastTradePrice.IsZero() {
		pt.lastTradePrice = indexPrice
	}

	premium := pt.lastTradePrice.Sub(indexPrice).Div(indexPrice)
	raw := premium.Mul(FundingDampening)

	clamped := raw
	if clamped.LessThan(fundingRateMin) {
		clamped = fundingRateMin
	}
	if clamped.GreaterThan(fundingRateMax) {
		clamped = fundingRateMax
	}
	pt.currentFundingRate = clamped

	pt.fundingWindow = append(pt.fundingWindow, clamped)
	if len(pt.fundingWindow) > FundingWindowSize {
		pt.fundingWindow = pt.fundingWindow[1:]
	}

	if pt.metrics != nil {
		pt.metrics.RecordFundingRate(pt.currentFundingRate)
	}
}

// updateMarkPrice derives the mark price from the index tick and the
// just-updated funding rate.
func (pt *PositionTracker) updateMarkPrice(indexPrice decimal.Decimal) {
	pt.markPrice = indexPrice.Mul(decimal.NewFromInt(1).Add(pt.currentFundingRate))
	if pt.metrics != nil {
		pt.metrics.RecordMarkPrice(pt.markPrice)
	}
}

// updateRisk recomputes unrealized PnL for every open position against
// the current mark price and liquidates any position whose collateral
// has fallen through the maintenance threshold.
func (pt *PositionTracker) updateRisk() {
	for _, p := range pt.positions {
		p.UnrealizedPnL = p.Size.Mul(pt.markPrice.Sub(p.EntryPrice))

		breached := p.Margin.Add(p.UnrealizedPnL).LessThanOrEqual(p.Margin.Mul(LiquidationThreshold))
		if !breached {
			p.liquidating = false
			continue
		}
		if p.liquidating {
			continue
		}
		pt.liquidate(p)
	}
}

// liquidate synthesizes the opposite-side MARKET order that flattens p
// and submits it on the book's liquidation lane. The in-flight flag is
// set immediately so a second breach detected before that order's
// resulting trade lands doesn't submit a duplicate.
func (pt *PositionTracker) liquidate(p *Position) {
	p.liquidating = true

	side := types.Ask
	if p.Size.IsNegative() {
		side = types.Bid
	}
	order := types.NewLiquidationOrder(pt.idGen(), p.UserID, side, p.Size.Abs())

	if pt.metrics != nil {
		pt.metrics.RecordLiquidation()
	}
	if pt.logger != nil {
		pt.logger.Warn("liquidating position", map[string]any{
			"user_id": p.UserID, "size": p.Size.String(), "margin": p.Margin.String(),
		})
	}

	pt.liquidationOut <- order
}

// settleFunding charges or pays every open position the current
// funding rate against its notional at mark price. A position that
// owes a payment and fails its wallet debit is liquidated immediately
// rather than left with an unsettled obligation.
func (pt *PositionTracker) settleFunding() {
	for _, p := range pt.positions {
		payment := p.Size.Mul(pt.markPrice).Mul(pt.currentFundingRate)
		if payment.IsZero() {
			continue
		}

		if payment.IsPositive() {
			ok, reason := pt.wallet.Debit(p.UserID, payment)
			if !ok {
				if pt.logger != nil {
					pt.logger.Warn("funding debit failed, liquidating", map[string]any{
						"user_id": p.UserID, "reason": reason,
					})
				}
				if !p.liquidating {
					pt.liquidate(p)
				}
				continue
			}
			pt.wallet.Credit(exchangeAccount, payment)
			p.Margin = p.Margin.Sub(payment)
			continue
		}

		owed := payment.Neg()
		ok, reason := pt.wallet.Debit(exchangeAccount, owed)
		if !ok {
			if pt.logger != nil {
				pt.logger.Warn("funding credit could not be sourced from exchange account", map[string]any{
					"user_id": p.UserID, "reason": reason,
				})
			}
			continue
		}
		pt.wallet.Credit(p.UserID, owed)
		p.Margin = p.Margin.Add(owed)
	}
}
