package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"perpion/internal/book"
	"perpion/internal/types"
)

// Submit must not block when the normal order lane is full — it
// reports ErrBookBackpressure instead. An unbuffered channel with no
// reader stands in for a lane that is already at capacity.
func TestSubmitReturnsBackpressureOnFullLane(t *testing.T) {
	e := &Engine{orderIn: make(chan book.Request)}

	order, _ := types.NewClientOrder(uuid.NewString(), "alice", types.Limit, types.Bid, decimal.NewFromInt(100), decimal.NewFromInt(1), decimal.NewFromInt(1))
	err := e.Submit(order)
	assert.ErrorIs(t, err, ErrBookBackpressure)
}
