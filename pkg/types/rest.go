// rest.go models the REST request/response payloads the execution client
// exchanges with the venue.
package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepthSnapshot is the GET /fapi/v1/depth response used to bootstrap a book.
type DepthSnapshot struct {
	LastUpdateID    uint64  `json:"lastUpdateId"`
	EventTime       int64   `json:"E"`
	TransactionTime int64   `json:"T"`
	Bids            []Level `json:"bids"`
	Asks            []Level `json:"asks"`
}

// OpenOrderAck is the venue's acknowledgment of a placed order. The detached
// open task decodes and logs it; engine truth comes from the user stream.
type OpenOrderAck struct {
	OrderID       uint64          `json:"orderId"`
	Symbol        Symbol          `json:"symbol"`
	Status        OrderStatus     `json:"status"`
	ClientOrderID uuid.UUID       `json:"clientOrderId"`
	Price         decimal.Decimal `json:"price"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	CumQty        decimal.Decimal `json:"cumQty"`
	CumQuote      decimal.Decimal `json:"cumQuote"`
	Side          Side            `json:"side"`
	TimeInForce   TimeInForce     `json:"timeInForce"`
	Kind          OrderKind       `json:"type"`
	UpdateTime    int64           `json:"updateTime"`
}

// CancelOrderAck is the venue's acknowledgment of a cancel request.
type CancelOrderAck struct {
	OrderID       uint64          `json:"orderId"`
	Symbol        Symbol          `json:"symbol"`
	Status        OrderStatus     `json:"status"`
	ClientOrderID uuid.UUID       `json:"clientOrderId"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	UpdateTime    int64           `json:"updateTime"`
}

// ListenKeyResponse is returned by POST /fapi/v1/listenKey.
type ListenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}
