package wallet

import "github.com/shopspring/decimal"

// Client is the synchronous handle other actors (PositionTracker,
// httpapi) hold onto the wallet actor. It hides the request/reply
// channel plumbing behind two plain method calls.
type Client struct {
	debits  chan<- DebitRequest
	credits chan<- CreditRequest
}

// NewClient wraps the wallet actor's inbound channels.
func NewClient(debits chan<- DebitRequest, credits chan<- CreditRequest) *Client {
	return &Client{debits: debits, credits: credits}
}

// Debit blocks until the wallet actor answers whether amount could be
// taken from accountID's balance.
func (c *Client) Debit(accountID string, amount decimal.Decimal) (bool, string) {
	reply := make(chan DebitResult, 1)
	c.debits <- DebitRequest{AccountID: accountID, Amount: amount, reply: reply}
	result := <-reply
	return result.OK, result.Reason
}

// Credit is fire-and-forget: it enqueues the credit and returns
// immediately.
func (c *Client) Credit(accountID string, amount decimal.Decimal) {
	c.credits <- CreditRequest{AccountID: accountID, Amount: amount}
}
