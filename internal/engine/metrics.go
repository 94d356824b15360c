package engine

import (
	"github.com/shopspring/decimal"

	"perpion/internal/position"
	"perpion/internal/telemetry"
	"perpion/internal/types"
)

// metricsBroadcaster wraps the real trade broadcaster (the WebSocket
// hub) so every trade is counted before fan-out. Wrapping rather than
// instrumenting OnTrade directly keeps internal/position free of a
// Prometheus dependency.
type metricsBroadcaster struct {
	next position.TradeBroadcaster
}

func (m metricsBroadcaster) Broadcast(trade types.Trade) {
	telemetry.TradesTotal.Inc()
	if m.next != nil {
		m.next.Broadcast(trade)
	}
}

// prometheusPositionAdapter wires PositionTracker's Metrics interface
// into the package-level Prometheus collectors.
type prometheusPositionAdapter struct{}

func (prometheusPositionAdapter) RecordLiquidation() {
	telemetry.LiquidationsTotal.Inc()
}

func (prometheusPositionAdapter) RecordFundingRate(rate decimal.Decimal) {
	telemetry.FundingRate.Set(rate.InexactFloat64())
}

func (prometheusPositionAdapter) RecordMarkPrice(mark decimal.Decimal) {
	telemetry.MarkPrice.Set(mark.InexactFloat64())
}

// prometheusBookAdapter wires OrderBook's Metrics interface into the
// package-level Prometheus collectors.
type prometheusBookAdapter struct{}

func (prometheusBookAdapter) SetDepth(side string, depth decimal.Decimal) {
	telemetry.BookDepth.WithLabelValues(side).Set(depth.InexactFloat64())
}

// prometheusWalletAdapter wires Wallet's Metrics interface into the
// package-level Prometheus collectors.
type prometheusWalletAdapter struct{}

func (prometheusWalletAdapter) RecordDebitRejection() {
	telemetry.WalletDebitRejectionsTotal.Inc()
}
