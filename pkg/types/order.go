// order.go holds the local order record. The engine keys active orders by
// ClientOrderID; the venue's numeric OrderID is informational and unknown
// until the first user stream update arrives.
package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the bot's local record of one quote order.
//
// OrigPrice/OrigQty are the placed values; CurrPrice/CurrQty reflect the
// latest fill reported by the venue (not cumulative). Status is empty until
// the venue acknowledges the order on the user stream.
type Order struct {
	Symbol        Symbol
	Side          Side
	StartTS       time.Time
	LastUpdateTS  time.Time
	ClientOrderID uuid.UUID
	OrderID       uint64 // venue-assigned, 0 until first update
	Kind          OrderKind
	OrigPrice     decimal.Decimal
	OrigQty       decimal.Decimal
	CurrPrice     decimal.Decimal
	CurrQty       decimal.Decimal
	TimeInForce   TimeInForce
	GoodTillDate  int64 // unix ms, 0 = none
	Status        OrderStatus
}

// NewOrder creates a local order with a fresh client order id.
func NewOrder(symbol Symbol, side Side, kind OrderKind, price, qty decimal.Decimal, tif TimeInForce, goodTillDate int64) *Order {
	now := time.Now()
	return &Order{
		Symbol:        symbol,
		Side:          side,
		StartTS:       now,
		LastUpdateTS:  now,
		ClientOrderID: uuid.New(),
		Kind:          kind,
		OrigPrice:     price,
		OrigQty:       qty,
		CurrPrice:     price,
		CurrQty:       qty,
		TimeInForce:   tif,
		GoodTillDate:  goodTillDate,
	}
}

// OnUpdate applies a venue order update to the local record. It reports
// whether the venue traded a resting LIMIT order as MARKET (price drift),
// which callers typically want to log.
func (o *Order) OnUpdate(u *OrderTradeUpdate) (kindDrifted bool) {
	o.LastUpdateTS = time.UnixMilli(u.TransactionTime)
	o.OrderID = u.Order.OrderID
	o.Status = u.Order.Status
	o.CurrPrice = u.Order.LastFilledPrice
	o.CurrQty = u.Order.LastFilledQty
	kindDrifted = u.Order.Kind == Market && o.Kind == Limit
	o.Kind = u.Order.Kind
	return kindDrifted
}

// Touch refreshes the last-update timestamp from a TRADE_LITE notification
// so the stale sweep does not cancel an order that is actively filling.
func (o *Order) Touch(transactionTime int64) {
	o.LastUpdateTS = time.UnixMilli(transactionTime)
}
