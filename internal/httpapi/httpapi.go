// Package httpapi exposes the exchange over HTTP and WebSocket: a JSON
// order submission endpoint, a liveness check, and a trade feed socket.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"perpion/internal/types"
	"perpion/internal/wallet"
)

// OrderRequest is the JSON body of POST /order. JWT is carried as an
// opaque account identifier — verifying or even parsing a real JWT is
// out of scope here, the same simplification the reference handler
// makes.
type OrderRequest struct {
	JWT      string  `json:"jwt"`
	Type     string  `json:"type"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Amount   float64 `json:"amount"`
	Leverage uint32  `json:"leverage"`
}

// OrderResponseBody is the JSON response for POST /order.
type OrderResponseBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Submitter is the engine surface the HTTP layer depends on to place
// orders. Submit returns an error when the book's order lane is full —
// the only error a caller can observe, surfaced to the client as a 500.
type Submitter interface {
	Submit(order types.Order) error
}

// BookPrices exposes the book's top-of-book cache, used to estimate the
// initial margin a MARKET order requires before it has a fill price.
type BookPrices interface {
	BestBid() (decimal.Decimal, bool)
	BestAsk() (decimal.Decimal, bool)
}

// MarkPricer exposes the risk engine's last computed mark price, the
// fallback margin estimate when the opposing side of the book is
// empty.
type MarkPricer interface {
	MarkPrice() decimal.Decimal
}

// WalletClient is the collateral collaborator the HTTP layer debits a
// new order's initial margin from before it ever reaches the book.
type WalletClient interface {
	Debit(accountID string, amount decimal.Decimal) (ok bool, reason string)
	Credit(accountID string, amount decimal.Decimal)
}

// Server bundles the mux router over the engine's order-entry surface
// and a trade Hub.
type Server struct {
	router *mux.Router
	engine Submitter
	book   BookPrices
	marks  MarkPricer
	wallet WalletClient
	hub    *Hub
}

// New builds the router: POST /order, GET / (liveness), GET /ws.
func New(engine Submitter, book BookPrices, marks MarkPricer, wallet WalletClient, hub *Hub) *Server {
	s := &Server{router: mux.NewRouter(), engine: engine, book: book, marks: marks, wallet: wallet, hub: hub}

	s.router.HandleFunc("/order", s.handleOrder).Methods(http.MethodPost)
	s.router.HandleFunc("/", s.handleLiveness).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.hub.handleUpgrade).Methods(http.MethodGet)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, OrderResponseBody{Error: "invalid request body"})
		return
	}

	var orderType types.OrderType
	switch req.Type {
	case "limit":
		orderType = types.Limit
	case "market":
		orderType = types.Market
	default:
		writeJSON(w, http.StatusBadRequest, OrderResponseBody{Error: "invalid order type: " + req.Type})
		return
	}

	var side types.Side
	switch req.Side {
	case "buy":
		side = types.Bid
	case "sell":
		side = types.Ask
	default:
		writeJSON(w, http.StatusBadRequest, OrderResponseBody{Error: "invalid side: " + req.Side})
		return
	}

	if req.JWT == "" {
		writeJSON(w, http.StatusBadRequest, OrderResponseBody{Error: "missing account identifier"})
		return
	}

	price := decimal.NewFromFloat(req.Price)
	amount := decimal.NewFromFloat(req.Amount)
	if amount.Sign() <= 0 {
		writeJSON(w, http.StatusBadRequest, OrderResponseBody{Error: "amount must be positive"})
		return
	}

	leverage := decimal.NewFromInt(1)
	if req.Leverage > 0 {
		leverage = decimal.NewFromInt(int64(req.Leverage))
	}

	requiredMargin := decimal.Zero
	if marginPrice, ok := s.estimateMarginPrice(side, orderType, price); ok {
		requiredMargin = marginPrice.Mul(amount).Div(leverage)
		if requiredMargin.IsPositive() {
			debited, reason := s.wallet.Debit(req.JWT, requiredMargin)
			if !debited {
				writeJSON(w, http.StatusBadRequest, OrderResponseBody{Error: "insufficient initial margin: " + reason})
				return
			}
			s.wallet.Credit(wallet.ExchangeAccount, requiredMargin)
		} else {
			requiredMargin = decimal.Zero
		}
	}

	order, reply := types.NewClientOrder(uuid.NewString(), req.JWT, orderType, side, price, amount, leverage)
	if err := s.engine.Submit(order); err != nil {
		if requiredMargin.IsPositive() {
			// the order never reached the book; unwind the margin hold.
			s.wallet.Debit(wallet.ExchangeAccount, requiredMargin)
			s.wallet.Credit(req.JWT, requiredMargin)
		}
		writeJSON(w, http.StatusInternalServerError, OrderResponseBody{Error: "order queue full, try again"})
		return
	}

	resp := <-reply
	writeJSON(w, http.StatusOK, OrderResponseBody{
		Message: orderSummary(resp),
	})
}

// estimateMarginPrice picks the price the initial-margin debit is
// computed against. A LIMIT order's own price is exact; a MARKET order
// has none yet, so the opposing side's best price stands in, falling
// back to the last mark price when that side of the book is empty. If
// neither exists (a fully cold start: empty book, no oracle tick yet),
// there is no price to gate on and the check is skipped — the order
// proceeds and the position's own margin accounting takes over once it
// fills.
func (s *Server) estimateMarginPrice(side types.Side, orderType types.OrderType, price decimal.Decimal) (decimal.Decimal, bool) {
	if orderType == types.Limit {
		return price, true
	}

	if side == types.Bid {
		if p, ok := s.book.BestAsk(); ok {
			return p, true
		}
	} else {
		if p, ok := s.book.BestBid(); ok {
			return p, true
		}
	}

	if mark := s.marks.MarkPrice(); mark.IsPositive() {
		return mark, true
	}
	return decimal.Zero, false
}

func orderSummary(resp types.OrderResponse) string {
	return "order processed: filled " + resp.Filled.String() + ", remaining " + resp.Remaining.String() + ", " + resp.Status
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
