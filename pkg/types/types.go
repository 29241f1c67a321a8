// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bot — symbols, sides, order
// enums, book levels, and the wire payloads of the venue's market and user
// data streams. It has no dependencies on internal packages, so it can be
// imported by any layer.
package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Symbol is the closed set of trading pairs the bot supports. Keeping it a
// dense uint8 enum lets per-symbol state (books, BBO caches, PnL ledgers)
// live in fixed-size arrays instead of maps.
type Symbol uint8

const (
	BTCUSDT Symbol = iota
	ETHUSDT
	SOLUSDT
	BNBUSDT

	// NumSymbols bounds the per-symbol arrays. Keep it last.
	NumSymbols int = iota
)

var symbolNames = [NumSymbols]string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"}

// String returns the REST wire form, e.g. "BTCUSDT".
func (s Symbol) String() string {
	if int(s) >= NumSymbols {
		return fmt.Sprintf("Symbol(%d)", uint8(s))
	}
	return symbolNames[s]
}

// Lower returns the stream-name form, e.g. "btcusdt".
func (s Symbol) Lower() string {
	return strings.ToLower(s.String())
}

// ParseSymbol accepts either wire form (case-insensitive).
func ParseSymbol(s string) (Symbol, error) {
	upper := strings.ToUpper(s)
	for i, name := range symbolNames {
		if name == upper {
			return Symbol(i), nil
		}
	}
	return 0, fmt.Errorf("unknown symbol %q", s)
}

// MarshalText serializes the uppercase wire form.
func (s Symbol) MarshalText() ([]byte, error) {
	if int(s) >= NumSymbols {
		return nil, fmt.Errorf("invalid symbol %d", uint8(s))
	}
	return []byte(symbolNames[s]), nil
}

func (s *Symbol) UnmarshalText(text []byte) error {
	sym, err := ParseSymbol(string(text))
	if err != nil {
		return err
	}
	*s = sym
	return nil
}

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderKind enumerates order types. The bot only places LIMIT orders, but the
// user stream can report any of the venue's kinds (a resting limit order may
// even come back as MARKET after price drift), so the full set is kept.
type OrderKind string

const (
	Limit              OrderKind = "LIMIT"
	Market             OrderKind = "MARKET"
	Stop               OrderKind = "STOP"
	StopMarket         OrderKind = "STOP_MARKET"
	TakeProfit         OrderKind = "TAKE_PROFIT"
	TakeProfitMarket   OrderKind = "TAKE_PROFIT_MARKET"
	TrailingStopMarket OrderKind = "TRAILING_STOP_MARKET"
	Liquidation        OrderKind = "LIQUIDATION"
)

// OrderStatus is the venue-reported order state.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusExpiredInMatch  OrderStatus = "EXPIRED_IN_MATCH"
)

// ExecutionType is the venue's per-update execution discriminator ("x").
type ExecutionType string

const (
	ExecNew        ExecutionType = "NEW"
	ExecCanceled   ExecutionType = "CANCELED"
	ExecCalculated ExecutionType = "CALCULATED"
	ExecExpired    ExecutionType = "EXPIRED"
	ExecTrade      ExecutionType = "TRADE"
	ExecAmendment  ExecutionType = "AMENDMENT"
)

// TimeInForce enumerates the venue's order lifetimes.
type TimeInForce string

const (
	GoodUntilCancel   TimeInForce = "GTC"
	GoodUntilDate     TimeInForce = "GTD"
	GoodTillCrossing  TimeInForce = "GTX"
	FillOrKill        TimeInForce = "FOK"
	ImmediateOrCancel TimeInForce = "IOC"
)

// Level is a single (price, quantity) book level. The venue serializes levels
// as ["price","qty"] string pairs; quantity zero marks a deleted level in
// depth deltas.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]decimal.Decimal{l.Price, l.Qty})
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var pair [2]decimal.Decimal
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	l.Price, l.Qty = pair[0], pair[1]
	return nil
}

// Bbo is the best bid/offer: the highest bid level and the lowest ask level.
type Bbo struct {
	Bid Level
	Ask Level
}
