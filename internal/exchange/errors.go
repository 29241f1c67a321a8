// errors.go categorizes non-2xx REST responses. Categories are informational
// only: handlers log them, nothing retries automatically.
package exchange

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APICategory is a coarse classification of venue API errors.
type APICategory string

const (
	CategoryRateLimit           APICategory = "rate_limit"
	CategoryBalanceInsufficient APICategory = "balance_insufficient"
	CategoryOrderRejected       APICategory = "order_rejected"
	CategoryOther               APICategory = "other"
)

// APIError is a non-2xx response from the venue.
type APIError struct {
	Status   int
	Category APICategory
	Code     int // venue error code from the body, 0 if absent
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%s): status %d code %d body %s", e.Category, e.Status, e.Code, e.Body)
}

// newAPIError classifies a response by HTTP status and the venue error code
// carried in the body.
func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	// Body may not be JSON at all; the zero code falls through to Other.
	_ = json.Unmarshal(body, &payload)

	category := CategoryOther
	switch {
	case status == http.StatusTooManyRequests || payload.Code == -1003:
		category = CategoryRateLimit
	case payload.Code == -2018 || payload.Code == -2019:
		category = CategoryBalanceInsufficient
	case payload.Code == -2010 || payload.Code == -2011 || payload.Code == -2013:
		category = CategoryOrderRejected
	}

	return &APIError{Status: status, Category: category, Code: payload.Code, Body: string(body)}
}
