package httpapi_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpion/internal/httpapi"
	"perpion/internal/types"
)

type fakeSubmitter struct {
	lastOrder types.Order
	full      bool
}

func (f *fakeSubmitter) Submit(order types.Order) error {
	if f.full {
		return errors.New("queue full")
	}
	f.lastOrder = order
	order.Reply(types.OrderResponse{Status: types.StatusResting, Filled: decimal.Zero, Remaining: order.Amount})
	return nil
}

type fakeBook struct {
	bestBid, bestAsk decimal.Decimal
	haveBid, haveAsk bool
}

func (f *fakeBook) BestBid() (decimal.Decimal, bool) { return f.bestBid, f.haveBid }
func (f *fakeBook) BestAsk() (decimal.Decimal, bool) { return f.bestAsk, f.haveAsk }

type fakeMarks struct{ mark decimal.Decimal }

func (f *fakeMarks) MarkPrice() decimal.Decimal { return f.mark }

type fakeWallet struct {
	debitOK     bool
	debitReason string
	debited     []decimal.Decimal
	credited    []decimal.Decimal
}

func (f *fakeWallet) Debit(accountID string, amount decimal.Decimal) (bool, string) {
	f.debited = append(f.debited, amount)
	return f.debitOK, f.debitReason
}

func (f *fakeWallet) Credit(accountID string, amount decimal.Decimal) {
	f.credited = append(f.credited, amount)
}

func postOrder(t *testing.T, s *httpapi.Server, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/order", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHandleOrderRejectsUnknownType(t *testing.T) {
	s := httpapi.New(&fakeSubmitter{}, &fakeBook{}, &fakeMarks{}, &fakeWallet{debitOK: true}, httpapi.NewHub())

	rec := postOrder(t, s, map[string]any{"jwt": "alice", "type": "bogus", "side": "buy", "price": 100, "amount": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOrderRejectsNonPositiveAmount(t *testing.T) {
	s := httpapi.New(&fakeSubmitter{}, &fakeBook{}, &fakeMarks{}, &fakeWallet{debitOK: true}, httpapi.NewHub())

	rec := postOrder(t, s, map[string]any{"jwt": "alice", "type": "limit", "side": "buy", "price": 100, "amount": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOrderRejectsInsufficientInitialMargin(t *testing.T) {
	submitter := &fakeSubmitter{}
	w := &fakeWallet{debitOK: false, debitReason: "insufficient_balance"}
	s := httpapi.New(submitter, &fakeBook{}, &fakeMarks{}, w, httpapi.NewHub())

	rec := postOrder(t, s, map[string]any{"jwt": "alice", "type": "limit", "side": "buy", "price": 100, "amount": 10, "leverage": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body httpapi.OrderResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "insufficient initial margin")

	// the order must never have reached the engine.
	assert.Empty(t, submitter.lastOrder.UserID)
}

func TestHandleOrderDebitsLimitMarginAtItsOwnPrice(t *testing.T) {
	submitter := &fakeSubmitter{}
	w := &fakeWallet{debitOK: true}
	s := httpapi.New(submitter, &fakeBook{}, &fakeMarks{}, w, httpapi.NewHub())

	rec := postOrder(t, s, map[string]any{"jwt": "alice", "type": "limit", "side": "buy", "price": 100, "amount": 2, "leverage": 1})
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, w.debited, 1)
	assert.True(t, w.debited[0].Equal(decimal.NewFromInt(200)), "expected 100*2/1, got %s", w.debited[0])
	require.Len(t, w.credited, 1)
	assert.Equal(t, "alice", submitter.lastOrder.UserID)
}

func TestHandleOrderEstimatesMarketMarginFromOpposingBestPrice(t *testing.T) {
	submitter := &fakeSubmitter{}
	w := &fakeWallet{debitOK: true}
	book := &fakeBook{bestAsk: decimal.NewFromInt(150), haveAsk: true}
	s := httpapi.New(submitter, book, &fakeMarks{}, w, httpapi.NewHub())

	rec := postOrder(t, s, map[string]any{"jwt": "alice", "type": "market", "side": "buy", "amount": 2, "leverage": 1})
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, w.debited, 1)
	assert.True(t, w.debited[0].Equal(decimal.NewFromInt(300)), "expected 150*2/1 from the opposing best ask, got %s", w.debited[0])
}

func TestHandleOrderSkipsMarginCheckWithNoPriceReference(t *testing.T) {
	submitter := &fakeSubmitter{}
	w := &fakeWallet{debitOK: true}
	s := httpapi.New(submitter, &fakeBook{}, &fakeMarks{mark: decimal.Zero}, w, httpapi.NewHub())

	rec := postOrder(t, s, map[string]any{"jwt": "alice", "type": "market", "side": "buy", "amount": 2, "leverage": 1})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, w.debited)
}

// When the book's order lane is full, the handler must surface 500
// rather than block, and must unwind the initial-margin debit it
// already took since the order never reached the book.
func TestHandleOrderReturns500AndRefundsMarginOnBackpressure(t *testing.T) {
	submitter := &fakeSubmitter{full: true}
	w := &fakeWallet{debitOK: true}
	s := httpapi.New(submitter, &fakeBook{}, &fakeMarks{}, w, httpapi.NewHub())

	rec := postOrder(t, s, map[string]any{"jwt": "alice", "type": "limit", "side": "buy", "price": 100, "amount": 2, "leverage": 1})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	require.Len(t, w.debited, 2, "expected the initial debit and the rollback debit against the exchange account")
	require.Len(t, w.credited, 2, "expected the exchange credit and the rollback credit back to the submitter")
	assert.True(t, w.debited[1].Equal(decimal.NewFromInt(200)))
	assert.True(t, w.credited[1].Equal(decimal.NewFromInt(200)))
}

func TestLivenessEndpoint(t *testing.T) {
	s := httpapi.New(&fakeSubmitter{}, &fakeBook{}, &fakeMarks{}, &fakeWallet{debitOK: true}, httpapi.NewHub())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
