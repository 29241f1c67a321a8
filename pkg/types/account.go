// account.go models the user data stream payloads: order lifecycle updates,
// the slim trade notification, and account balance/position snapshots.
package types

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderTradeUpdate is the full order lifecycle event ("ORDER_TRADE_UPDATE").
// The order payload is nested under "o" on the wire.
type OrderTradeUpdate struct {
	EventType       string      `json:"e"`
	EventTime       int64       `json:"E"`
	TransactionTime int64       `json:"T"`
	Order           OrderUpdate `json:"o"`
}

// OrderUpdate is the nested order object of an OrderTradeUpdate.
type OrderUpdate struct {
	Symbol          Symbol          `json:"s"`
	ClientOrderID   uuid.UUID       `json:"c"`
	Side            Side            `json:"S"`
	Kind            OrderKind       `json:"o"`
	TimeInForce     TimeInForce     `json:"f"`
	OrigQty         decimal.Decimal `json:"q"`
	OrigPrice       decimal.Decimal `json:"p"`
	AvgPrice        decimal.Decimal `json:"ap"`
	StopPrice       decimal.Decimal `json:"sp"`
	ExecType        ExecutionType   `json:"x"`
	Status          OrderStatus     `json:"X"`
	OrderID         uint64          `json:"i"`
	LastFilledQty   decimal.Decimal `json:"l"`
	FilledQty       decimal.Decimal `json:"z"`
	LastFilledPrice decimal.Decimal `json:"L"`
	CommissionAsset string          `json:"N"`
	Commission      decimal.Decimal `json:"n"`
	TradeTime       int64           `json:"T"`
	TradeID         uint64          `json:"t"`
	BidsNotional    decimal.Decimal `json:"b"`
	AsksNotional    decimal.Decimal `json:"a"`
	IsMaker         bool            `json:"m"`
	IsReduceOnly    bool            `json:"R"`
	RealizedProfit  decimal.Decimal `json:"rp"`
	GoodTillDate    int64           `json:"gtd"`
}

// LastFilledAmount is the notional of this fill: last price times last qty.
func (u *OrderUpdate) LastFilledAmount() decimal.Decimal {
	return u.LastFilledPrice.Mul(u.LastFilledQty)
}

// TradeLite is the slim fill notification ("TRADE_LITE"). It carries a subset
// of OrderTradeUpdate and arrives faster; the engine uses it only to refresh
// order timestamps.
type TradeLite struct {
	EventType       string          `json:"e"`
	EventTime       int64           `json:"E"`
	TransactionTime int64           `json:"T"`
	Symbol          Symbol          `json:"s"`
	OrigQty         decimal.Decimal `json:"q"`
	OrigPrice       decimal.Decimal `json:"p"`
	IsMaker         bool            `json:"m"`
	ClientOrderID   uuid.UUID       `json:"c"`
	Side            Side            `json:"S"`
	LastFilledPrice decimal.Decimal `json:"L"`
	LastFilledQty   decimal.Decimal `json:"l"`
	TradeID         uint64          `json:"t"`
	OrderID         uint64          `json:"i"`
}

// AccountUpdate is the balance/position event ("ACCOUNT_UPDATE"). The engine
// treats it as informational: authoritative position is derived from trades.
type AccountUpdate struct {
	EventType       string            `json:"e"`
	EventTime       int64             `json:"E"`
	TransactionTime int64             `json:"T"`
	Data            AccountUpdateData `json:"a"`
}

// AccountUpdateData is the nested "a" object.
type AccountUpdateData struct {
	Reason    string           `json:"m"`
	Balances  []BalanceUpdate  `json:"B"`
	Positions []PositionUpdate `json:"P"`
}

// BalanceUpdate is a single wallet balance row.
type BalanceUpdate struct {
	Asset              string          `json:"a"`
	WalletBalance      decimal.Decimal `json:"wb"`
	CrossWalletBalance decimal.Decimal `json:"cw"`
	BalanceChange      decimal.Decimal `json:"bc"`
}

// PositionUpdate is a single position row. Symbol stays a string here: the
// account stream may report pairs outside the supported set.
type PositionUpdate struct {
	Symbol         string          `json:"s"`
	PositionAmount decimal.Decimal `json:"pa"`
	EntryPrice     decimal.Decimal `json:"ep"`
	UnrealizedPnL  decimal.Decimal `json:"up"`
	MarginType     string          `json:"mt"`
	IsolatedWallet decimal.Decimal `json:"iw"`
	PositionSide   string          `json:"ps"`
}

// AccountEvent is the typed sum of user stream messages. Exactly one field is
// set; Raw carries text that did not parse as a known payload.
type AccountEvent struct {
	OrderTradeUpdate *OrderTradeUpdate
	TradeLite        *TradeLite
	AccountUpdate    *AccountUpdate
	Raw              []byte
}

// ParseAccountEvent decodes one user stream frame. It never fails: unknown
// tags and malformed payloads come back as Raw so the session keeps running.
func ParseAccountEvent(data []byte) AccountEvent {
	var env struct {
		Tag       string          `json:"e"`
		EventTime json.RawMessage `json:"E"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return AccountEvent{Raw: data}
	}

	switch env.Tag {
	case "ORDER_TRADE_UPDATE":
		var v OrderTradeUpdate
		if err := json.Unmarshal(data, &v); err != nil {
			return AccountEvent{Raw: data}
		}
		return AccountEvent{OrderTradeUpdate: &v}
	case "TRADE_LITE":
		var v TradeLite
		if err := json.Unmarshal(data, &v); err != nil {
			return AccountEvent{Raw: data}
		}
		return AccountEvent{TradeLite: &v}
	case "ACCOUNT_UPDATE":
		var v AccountUpdate
		if err := json.Unmarshal(data, &v); err != nil {
			return AccountEvent{Raw: data}
		}
		return AccountEvent{AccountUpdate: &v}
	default:
		return AccountEvent{Raw: data}
	}
}
