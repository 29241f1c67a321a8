// Package strategy turns trading state into quote orders.
//
// The shipped strategy is deliberately naive: it reproduces the venue's own
// best bid/offer around the midpoint. Its job is to exercise the engine's
// order plumbing, not to make money.
package strategy

import (
	"github.com/shopspring/decimal"

	"ceraunus/internal/engine"
	"ceraunus/pkg/types"
)

var two = decimal.NewFromInt(2)

// MidpointQuoter quotes one buy and one sell around the current midpoint,
// half a spread away on each side.
type MidpointQuoter struct {
	qty decimal.Decimal
	tif types.TimeInForce
}

// NewMidpointQuoter quotes the given size on both sides, good until cancel.
func NewMidpointQuoter(qty decimal.Decimal) *MidpointQuoter {
	return &MidpointQuoter{qty: qty, tif: types.GoodUntilCancel}
}

// GenerateQuotes returns a buy at mid - spread/2 and a sell at mid + spread/2,
// or nothing when no BBO is known yet.
func (q *MidpointQuoter) GenerateQuotes(symbol types.Symbol, state *engine.State) []*types.Order {
	bbo, ok := state.Bbo(symbol)
	if !ok {
		return nil
	}

	spread := bbo.Ask.Price.Sub(bbo.Bid.Price)
	mid := bbo.Ask.Price.Add(bbo.Bid.Price).Div(two)
	half := spread.Div(two)

	return []*types.Order{
		types.NewOrder(symbol, types.Buy, types.Limit, mid.Sub(half), q.qty, q.tif, 0),
		types.NewOrder(symbol, types.Sell, types.Limit, mid.Add(half), q.qty, q.tif, 0),
	}
}
