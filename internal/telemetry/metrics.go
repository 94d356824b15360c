// Package telemetry registers the exchange's Prometheus collectors and
// serves them alongside a zerolog-backed logging setup.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TradesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "perpion_trades_total",
		Help: "Total number of matched trades.",
	})

	BookDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "perpion_book_depth",
		Help: "Resting quantity at the best price level, by side.",
	}, []string{"side"})

	FundingRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "perpion_funding_rate",
		Help: "Current clamped funding rate.",
	})

	MarkPrice = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "perpion_mark_price",
		Help: "Current mark price.",
	})

	LiquidationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "perpion_liquidations_total",
		Help: "Total number of positions liquidated.",
	})

	WalletDebitRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "perpion_wallet_debit_rejections_total",
		Help: "Total number of wallet debits rejected for insufficient balance.",
	})
)

func init() {
	prometheus.MustRegister(TradesTotal, BookDepth, FundingRate, MarkPrice, LiquidationsTotal, WalletDebitRejectionsTotal)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
