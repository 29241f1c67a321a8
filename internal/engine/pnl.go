// pnl.go tracks per-symbol profit and loss from the trade executions
// reported on the user stream.
package engine

import (
	"github.com/shopspring/decimal"

	"ceraunus/pkg/types"
)

// Ledger accumulates one symbol's position and PnL. Position is signed, long
// positive. All arithmetic is exact decimal; no floats touch money.
//
// ExecutionPnL only accumulates commission costs; realized PnL is booked when
// a fill reduces or flips the position, against the volume-weighted average
// entry price.
type Ledger struct {
	executionPnL  decimal.Decimal
	unrealizedPnL decimal.Decimal
	realizedPnL   decimal.Decimal
	avgEntryPrice decimal.Decimal
	position      decimal.Decimal
	buyQty        decimal.Decimal
	sellQty       decimal.Decimal
	buyAmount     decimal.Decimal
	sellAmount    decimal.Decimal
}

// NewLedger starts a ledger from an existing position, usually flat.
func NewLedger(initPrice, initPos decimal.Decimal) *Ledger {
	return &Ledger{avgEntryPrice: initPrice, position: initPos}
}

// OnTrade applies one fill. Call only for TRADE execution updates.
func (l *Ledger) OnTrade(u *types.OrderUpdate) {
	l.executionPnL = l.executionPnL.Sub(u.Commission)

	price := u.LastFilledPrice
	qty := u.LastFilledQty
	amount := u.LastFilledAmount()

	switch u.Side {
	case types.Buy:
		l.handleBuy(price, qty, amount)
	case types.Sell:
		l.handleSell(price, qty, amount)
	}

	l.unrealizedPnL = price.Sub(l.avgEntryPrice).Mul(l.position)
}

func (l *Ledger) handleBuy(price, qty, amount decimal.Decimal) {
	oldPos := l.position
	l.position = l.position.Add(qty)
	l.buyQty = l.buyQty.Add(qty)
	l.buyAmount = l.buyAmount.Add(amount)

	switch {
	case oldPos.Sign() >= 0:
		// extending a long (or opening from flat): weighted average entry
		if l.position.Sign() > 0 {
			totalCost := l.avgEntryPrice.Mul(oldPos).Add(amount)
			l.avgEntryPrice = totalCost.Div(l.position)
		}
	case qty.Cmp(oldPos.Neg()) <= 0:
		// reducing a short
		l.realizedPnL = l.realizedPnL.Add(l.avgEntryPrice.Sub(price).Mul(qty))
	default:
		// flipping short to long: realize the whole short, restart entry
		l.realizedPnL = l.realizedPnL.Add(l.avgEntryPrice.Sub(price).Mul(oldPos.Neg()))
		l.avgEntryPrice = price
	}
}

func (l *Ledger) handleSell(price, qty, amount decimal.Decimal) {
	oldPos := l.position
	l.position = l.position.Sub(qty)
	l.sellQty = l.sellQty.Add(qty)
	l.sellAmount = l.sellAmount.Add(amount)

	switch {
	case oldPos.Sign() <= 0:
		// extending a short (or opening from flat): weighted average entry
		if l.position.Sign() < 0 {
			totalProceeds := l.avgEntryPrice.Mul(oldPos.Neg()).Add(amount)
			l.avgEntryPrice = totalProceeds.Div(l.position.Neg())
		}
	case qty.Cmp(oldPos) <= 0:
		// reducing a long
		l.realizedPnL = l.realizedPnL.Add(price.Sub(l.avgEntryPrice).Mul(qty))
	default:
		// flipping long to short: realize the whole long, restart entry
		l.realizedPnL = l.realizedPnL.Add(price.Sub(l.avgEntryPrice).Mul(oldPos))
		l.avgEntryPrice = price
	}
}

// ExecutionPnL returns accumulated commission costs (negative of fees paid).
func (l *Ledger) ExecutionPnL() decimal.Decimal { return l.executionPnL }

// UnrealizedPnL returns (last price - avg entry) x position as of the last fill.
func (l *Ledger) UnrealizedPnL() decimal.Decimal { return l.unrealizedPnL }

// RealizedPnL returns PnL booked by position reductions and flips.
func (l *Ledger) RealizedPnL() decimal.Decimal { return l.realizedPnL }

// AvgEntryPrice returns the volume-weighted entry price of the open position.
func (l *Ledger) AvgEntryPrice() decimal.Decimal { return l.avgEntryPrice }

// Position returns the signed open position in base quantity.
func (l *Ledger) Position() decimal.Decimal { return l.position }

// BuyQty returns cumulative bought quantity.
func (l *Ledger) BuyQty() decimal.Decimal { return l.buyQty }

// SellQty returns cumulative sold quantity.
func (l *Ledger) SellQty() decimal.Decimal { return l.sellQty }

// BuyAmount returns cumulative bought notional.
func (l *Ledger) BuyAmount() decimal.Decimal { return l.buyAmount }

// SellAmount returns cumulative sold notional.
func (l *Ledger) SellAmount() decimal.Decimal { return l.sellAmount }
