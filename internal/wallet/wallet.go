// Package wallet implements the collateral ledger: every account's
// cash balance, auto-provisioned on first touch, plus the distinguished
// exchange account that clears fees and funding.
package wallet

import (
	"context"

	"github.com/shopspring/decimal"
)

// ExchangeAccount is the distinguished clearing account, seeded far
// above any single user's balance.
const ExchangeAccount = "exchange"

// Seed balances new accounts are provisioned with on first touch.
var (
	UserSeedBalance     = decimal.NewFromInt(1_000_000)
	ExchangeSeedBalance = decimal.NewFromInt(10_000_000)
)

// DebitRequest asks the wallet actor to move amount out of accountID's
// balance. reply receives exactly one DebitResult.
type DebitRequest struct {
	AccountID string
	Amount    decimal.Decimal
	reply     chan DebitResult
}

// DebitResult is the single reply to a DebitRequest.
type DebitResult struct {
	OK     bool
	Reason string
}

// CreditRequest asks the wallet actor to add amount to accountID's
// balance. Fire-and-forget: no reply is ever produced, since crediting
// cannot fail in this model.
type CreditRequest struct {
	AccountID string
	Amount    decimal.Decimal
}

// Logger is the minimal structured-logging surface Wallet needs.
type Logger interface {
	Info(msg string, fields map[string]any)
}

// Metrics is the minimal instrumentation surface Wallet reports to.
// nil is a valid, no-op value.
type Metrics interface {
	RecordDebitRejection()
}

// Wallet is the account-balance actor. Like OrderBook and
// PositionTracker, its methods assume single-goroutine ownership; all
// mutation happens from within Run.
type Wallet struct {
	balances map[string]decimal.Decimal
	logger   Logger
	metrics  Metrics
}

// New constructs an empty Wallet with the exchange account pre-seeded.
func New(logger Logger, metrics Metrics) *Wallet {
	w := &Wallet{
		balances: make(map[string]decimal.Decimal),
		logger:   logger,
		metrics:  metrics,
	}
	w.balances[ExchangeAccount] = ExchangeSeedBalance
	return w
}

// Balance returns accountID's balance, auto-provisioning it at the
// user seed balance if this is its first appearance.
func (w *Wallet) Balance(accountID string) decimal.Decimal {
	bal, ok := w.balances[accountID]
	if !ok {
		bal = w.provision(accountID)
	}
	return bal
}

func (w *Wallet) provision(accountID string) decimal.Decimal {
	seed := UserSeedBalance
	if accountID == ExchangeAccount {
		seed = ExchangeSeedBalance
	}
	w.balances[accountID] = seed
	if w.logger != nil {
		w.logger.Info("provisioned account", map[string]any{"account_id": accountID, "balance": seed.String()})
	}
	return seed
}

func (w *Wallet) debit(req DebitRequest) {
	bal := w.Balance(req.AccountID)
	if bal.LessThan(req.Amount) {
		if w.metrics != nil {
			w.metrics.RecordDebitRejection()
		}
		req.reply <- DebitResult{OK: false, Reason: "insufficient_balance"}
		return
	}
	w.balances[req.AccountID] = bal.Sub(req.Amount)
	req.reply <- DebitResult{OK: true}
}

// credit is a no-op if the account has never been touched — unlike
// debit, credit never auto-provisions (spec: "no-op if the account is
// absent").
func (w *Wallet) credit(req CreditRequest) {
	bal, ok := w.balances[req.AccountID]
	if !ok {
		return
	}
	w.balances[req.AccountID] = bal.Add(req.Amount)
}

// Run is the wallet's actor loop over its two inbound channels.
func (w *Wallet) Run(ctx context.Context, debits <-chan DebitRequest, credits <-chan CreditRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-debits:
			if !ok {
				debits = nil
				break
			}
			w.debit(req)
		case req, ok := <-credits:
			if !ok {
				credits = nil
				break
			}
			w.credit(req)
		}
		if debits == nil && credits == nil {
			return
		}
	}
}
