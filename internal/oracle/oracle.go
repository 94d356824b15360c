// Package oracle simulates the index price feed: a single BTC/USD
// series that drifts, jitters, occasionally jumps, and is smoothed into
// an exponential moving average alongside the raw tick.
package oracle

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"perpion/internal/types"
)

// EMAPeriod is N in the standard alpha = 2/(N+1) smoothing constant.
const EMAPeriod = 30

// Tuning constants for the simulated walk: drift is a small per-tick
// upward bias, noiseStdDev is the per-tick Gaussian jitter as a
// fraction of price, rareEventChance is the per-tick probability of a
// larger dislocation, rareEventStdDev its magnitude.
const (
	drift           = 0.00002
	noiseStdDev     = 0.0015
	rareEventChance = 0.01
	rareEventStdDev = 0.02
)

// floorPrice is the positive minimum the simulated index price is
// clamped to; the series must never reach zero or go negative.
const floorPrice = 100.0

// Oracle generates the simulated index price series. It is not an
// actor in the request/reply sense — it has no inbound channel, only a
// ticker and an outbound stream — but it runs under the same
// ctx-cancellation discipline as the rest of the engine.
type Oracle struct {
	rng   *rand.Rand
	price decimal.Decimal
	ema   decimal.Decimal
	tick  time.Duration
	out   chan<- types.IndexPrice
}

// New seeds an Oracle starting at startPrice. A zero seed is replaced
// with the current time so repeated runs don't all walk identically.
func New(out chan<- types.IndexPrice, startPrice decimal.Decimal, tick time.Duration, seed int64) *Oracle {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Oracle{
		rng:   rand.New(rand.NewSource(seed)),
		price: startPrice,
		ema:   startPrice,
		tick:  tick,
		out:   out,
	}
}

// Run drives the ticker until ctx is canceled, pushing one IndexPrice
// per tick onto out. out must have enough capacity (or a draining
// reader) that this never blocks the simulated market from advancing.
func (o *Oracle) Run(ctx context.Context) {
	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			o.step()
			select {
			case o.out <- types.IndexPrice{Timestamp: now, Price: o.price, EMA: o.ema}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// step advances the price one tick: a small upward drift, Gaussian
// noise scaled to the current price, and an occasional larger jump.
// The new price then feeds the running EMA.
func (o *Oracle) step() {
	p, _ := o.price.Float64()

	pctChange := drift + o.gaussian(0, noiseStdDev)
	if o.rng.Float64() < rareEventChance {
		pctChange += o.gaussian(0, rareEventStdDev)
	}

	p = p * (1 + pctChange)
	if p < floorPrice {
		p = floorPrice
	}
	o.price = decimal.NewFromFloat(p)
	o.ema = ema(o.ema, o.price, EMAPeriod)
}

// gaussian draws from a Normal(mean, stdDev) distribution via the
// Box-Muller transform over math/rand.Float64.
func (o *Oracle) gaussian(mean, stdDev float64) float64 {
	u1 := o.rng.Float64()
	u2 := o.rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + z*stdDev
}

// ema folds one new sample into an exponential moving average with
// alpha = 2/(period+1). period must be > 0.
func ema(previous, sample decimal.Decimal, period int) decimal.Decimal {
	alpha := decimal.NewFromFloat(2.0 / float64(period+1))
	return alpha.Mul(sample).Add(decimal.NewFromInt(1).Sub(alpha).Mul(previous))
}
