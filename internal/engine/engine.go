// Package engine wires the four actors — OrderBook, PositionTracker,
// Oracle, and Wallet — into the running exchange: it owns every
// channel between them and starts each actor under one supervised
// tomb so a panic in any actor tears the whole engine down rather than
// wedging it silently.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"perpion/internal/book"
	"perpion/internal/chanutil"
	"perpion/internal/oracle"
	"perpion/internal/position"
	"perpion/internal/types"
	"perpion/internal/wallet"
)

// ErrBookBackpressure is returned by Submit when the book's normal
// order lane is full. The lane is bounded precisely so this is
// reachable; callers surface it as a rejection rather than blocking.
var ErrBookBackpressure = errors.New("book submission queue full")

// Channel capacities. Client and liquidation order lanes are bounded —
// backpressure there is a deliberate signal to producers — while the
// trade bus and the index price stream run over the unbounded queue so
// a slow consumer on either end never stalls matching or pricing.
const (
	orderLaneCapacity       = 10_000
	liquidationLaneCapacity = 10_000
)

// Config collects the knobs New needs beyond wiring.
type Config struct {
	StartPrice           decimal.Decimal
	OracleTick           time.Duration
	OracleSeed           int64
	FundingIntervalTicks int
}

// Engine owns the running exchange's channels and actor handles. Book,
// Positions, and Wallet are exported so the HTTP layer can read the
// top of book and the mark price and move initial margin through the
// wallet without the engine growing a second, redundant API surface.
type Engine struct {
	Book      *book.OrderBook
	Positions *position.PositionTracker
	Wallet    *wallet.Client

	orderIn       chan book.Request
	liquidationIn chan types.Order

	tomb *tomb.Tomb
}

// New constructs every actor and its channels and starts them; call
// Shutdown to stop the engine.
func New(cfg Config, broadcaster position.TradeBroadcaster) *Engine {
	tradeBus := chanutil.NewUnbounded[types.Trade]()
	oracleBus := chanutil.NewUnbounded[types.IndexPrice]()

	orderIn := make(chan book.Request, orderLaneCapacity)
	liquidationIn := make(chan types.Order, liquidationLaneCapacity)

	debits := make(chan wallet.DebitRequest)
	credits := make(chan wallet.CreditRequest)

	w := wallet.New(zeroLogWalletAdapter{}, prometheusWalletAdapter{})
	walletClient := wallet.NewClient(debits, credits)

	ob := book.New(tradeBus.In, zeroLogBookAdapter{}, prometheusBookAdapter{})
	pt := position.New(liquidationIn, walletClient, metricsBroadcaster{broadcaster}, zeroLogPositionAdapter{}, prometheusPositionAdapter{}, cfg.FundingIntervalTicks, uuid.NewString)
	orc := oracle.New(oracleBus.In, cfg.StartPrice, cfg.OracleTick, cfg.OracleSeed)

	e := &Engine{
		Book:          ob,
		Positions:     pt,
		Wallet:        walletClient,
		orderIn:       orderIn,
		liquidationIn: liquidationIn,
	}

	e.start(w, orc, debits, credits, tradeBus.Out, oracleBus.Out)
	return e
}

func (e *Engine) start(w *wallet.Wallet, orc *oracle.Oracle, debits <-chan wallet.DebitRequest, credits <-chan wallet.CreditRequest, trades <-chan types.Trade, indexTicks <-chan types.IndexPrice) {
	t, ctx := tomb.WithContext(context.Background())
	e.tomb = t

	t.Go(func() error {
		e.Book.Run(ctx, e.orderIn, e.liquidationIn)
		return nil
	})
	t.Go(func() error {
		e.Positions.Run(ctx, trades, indexTicks)
		return nil
	})
	t.Go(func() error {
		w.Run(ctx, debits, credits)
		return nil
	})
	t.Go(func() error {
		orc.Run(ctx)
		return nil
	})

	log.Info().Msg("engine started")
}

// Submit hands a client or liquidation order to the book actor's
// normal lane. The order's own responder (set up by
// types.NewClientOrder) is how the caller learns the terminal result —
// Submit itself only forwards. The send is non-blocking: a full lane
// returns ErrBookBackpressure instead of stalling the caller.
func (e *Engine) Submit(order types.Order) error {
	select {
	case e.orderIn <- book.Request{Order: &order}:
		return nil
	default:
		return ErrBookBackpressure
	}
}

// Snapshot asks the book actor for a debug rendering without racing an
// in-flight match.
func (e *Engine) Snapshot() book.BookView {
	reply := make(chan book.BookView, 1)
	e.orderIn <- book.Request{DebugReply: reply}
	return <-reply
}

// Shutdown stops every actor and waits for them to exit.
func (e *Engine) Shutdown() error {
	e.tomb.Kill(nil)
	return e.tomb.Wait()
}
