// stream.go models the market data stream payloads.
//
// Every stream message is a JSON object tagged by its "e" field. The payload
// structs map 1:1 to the venue's single-letter wire keys; timestamps are unix
// milliseconds as sent. MarketEvent is the closed sum of everything the
// market socket can deliver, with Raw as the fallback for unknown or
// malformed text.
package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// DepthUpdate is an incremental order book delta.
type DepthUpdate struct {
	EventType         string  `json:"e"`
	EventTime         int64   `json:"E"`
	TransactionTime   int64   `json:"T"`
	Symbol            Symbol  `json:"s"`
	FirstUpdateID     uint64  `json:"U"`
	FinalUpdateID     uint64  `json:"u"`
	LastFinalUpdateID uint64  `json:"pu"`
	Bids              []Level `json:"b"`
	Asks              []Level `json:"a"`
}

// BookTicker is a top-of-book update. Arrives on every BBO change and
// overrides the book-derived BBO cache directly.
type BookTicker struct {
	EventType       string          `json:"e"`
	UpdateID        uint64          `json:"u"`
	EventTime       int64           `json:"E"`
	TransactionTime int64           `json:"T"`
	Symbol          Symbol          `json:"s"`
	BidPrice        decimal.Decimal `json:"b"`
	BidQty          decimal.Decimal `json:"B"`
	AskPrice        decimal.Decimal `json:"a"`
	AskQty          decimal.Decimal `json:"A"`
}

// Bbo converts the ticker to the cached BBO form.
func (bt *BookTicker) Bbo() Bbo {
	return Bbo{
		Bid: Level{Price: bt.BidPrice, Qty: bt.BidQty},
		Ask: Level{Price: bt.AskPrice, Qty: bt.AskQty},
	}
}

// AggTrade is a compressed trade from the aggTrade stream.
type AggTrade struct {
	EventType       string          `json:"e"`
	EventTime       int64           `json:"E"`
	TransactionTime int64           `json:"T"`
	Symbol          Symbol          `json:"s"`
	AggTradeID      uint64          `json:"a"`
	Price           decimal.Decimal `json:"p"`
	Qty             decimal.Decimal `json:"q"`
	FirstTradeID    uint64          `json:"f"`
	LastTradeID     uint64          `json:"l"`
	IsBuyerMaker    bool            `json:"m"`
}

// Trade is a raw trade from the trade stream.
type Trade struct {
	EventType       string          `json:"e"`
	EventTime       int64           `json:"E"`
	TransactionTime int64           `json:"T"`
	Symbol          Symbol          `json:"s"`
	TradeID         uint64          `json:"t"`
	Price           decimal.Decimal `json:"p"`
	Qty             decimal.Decimal `json:"q"`
	IsBuyerMaker    bool            `json:"m"`
}

// MarketEvent is the typed sum of market stream messages. Exactly one field
// is set; Raw carries text that did not parse as a known payload.
type MarketEvent struct {
	Depth      *DepthUpdate
	BookTicker *BookTicker
	AggTrade   *AggTrade
	Trade      *Trade
	Raw        []byte
}

// ParseMarketEvent decodes one market stream frame. It never fails: unknown
// tags and malformed payloads come back as Raw so the session keeps running.
func ParseMarketEvent(data []byte) MarketEvent {
	// "E" gets its own field so encoding/json's case-insensitive matching
	// cannot fold it onto the "e" tag.
	var env struct {
		Tag       string          `json:"e"`
		EventTime json.RawMessage `json:"E"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return MarketEvent{Raw: data}
	}

	switch env.Tag {
	case "depthUpdate":
		var v DepthUpdate
		if err := json.Unmarshal(data, &v); err != nil {
			return MarketEvent{Raw: data}
		}
		return MarketEvent{Depth: &v}
	case "bookTicker":
		var v BookTicker
		if err := json.Unmarshal(data, &v); err != nil {
			return MarketEvent{Raw: data}
		}
		return MarketEvent{BookTicker: &v}
	case "aggTrade":
		var v AggTrade
		if err := json.Unmarshal(data, &v); err != nil {
			return MarketEvent{Raw: data}
		}
		return MarketEvent{AggTrade: &v}
	case "trade":
		var v Trade
		if err := json.Unmarshal(data, &v); err != nil {
			return MarketEvent{Raw: data}
		}
		return MarketEvent{Trade: &v}
	default:
		return MarketEvent{Raw: data}
	}
}
