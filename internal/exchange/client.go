// Package exchange implements the venue's REST execution client and the
// WebSocket stream sessions.
//
// The REST client (Client) covers order management and session plumbing:
//   - OpenOrder:          POST /fapi/v1/order       — place an order (signed query as body)
//   - CancelOrder:        DELETE /fapi/v1/order     — cancel by origClientOrderId
//   - CreateListenKey:    POST /fapi/v1/listenKey   — open a user-data session
//   - KeepAliveListenKey: PUT /fapi/v1/listenKey    — extend the session
//   - DepthSnapshot:      GET /fapi/v1/depth        — book snapshot for bootstrap
//
// Every request passes a per-category token bucket first; order and cancel
// requests carry an HMAC-SHA256 signed query, and all private requests
// (including the listen-key calls) carry the X-MBX-APIKEY header. Transport
// errors and 5xx responses are retried by resty; API errors are classified
// (errors.go) and returned without retry.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"ceraunus/pkg/types"
)

// Client is the venue REST API client. The underlying resty client pools
// connections, so a single Client is shared by all detached request tasks.
type Client struct {
	http   *resty.Client
	signer *Signer
	rl     *RateLimiter
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(baseURL string, signer *Signer, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(3 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{
		http:   httpClient,
		signer: signer,
		rl:     NewRateLimiter(),
		logger: logger,
	}
}

// OpenOrder places a limit or market order. The signed query travels as the
// request body, url-encoded. The venue echoes back an ack; the authoritative
// lifecycle still arrives on the user stream keyed by ClientOrderID.
func (c *Client) OpenOrder(ctx context.Context, order *types.Order) (*types.OpenOrderAck, error) {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", order.Symbol.String())
	params.Set("side", string(order.Side))
	params.Set("type", string(order.Kind))
	params.Set("quantity", order.OrigQty.String())
	if order.Kind == types.Limit {
		params.Set("price", order.OrigPrice.String())
		params.Set("timeInForce", string(order.TimeInForce))
	}
	if order.GoodTillDate != 0 {
		params.Set("goodTillDate", strconv.FormatInt(order.GoodTillDate, 10))
	}
	params.Set("newClientOrderId", order.ClientOrderID.String())

	var ack types.OpenOrderAck
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(HeaderAPIKey, c.signer.APIKey()).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(c.signer.Sign(params)).
		SetResult(&ack).
		Post("/fapi/v1/order")
	if err != nil {
		return nil, fmt.Errorf("open order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, newAPIError(resp.StatusCode(), resp.Body())
	}
	return &ack, nil
}

// CancelOrder cancels an order by its client order id.
func (c *Client) CancelOrder(ctx context.Context, symbol types.Symbol, clientOrderID uuid.UUID) (*types.CancelOrderAck, error) {
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", symbol.String())
	params.Set("origClientOrderId", clientOrderID.String())

	// The signed query goes into the URL verbatim: resty's query-param
	// handling re-encodes and sorts keys, which would move the signature.
	var ack types.CancelOrderAck
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(HeaderAPIKey, c.signer.APIKey()).
		SetResult(&ack).
		Delete("/fapi/v1/order?" + c.signer.Sign(params))
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, newAPIError(resp.StatusCode(), resp.Body())
	}
	return &ack, nil
}

// CreateListenKey opens a user-data stream session and returns its key.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	if err := c.rl.ListenKey.Wait(ctx); err != nil {
		return "", err
	}

	var result types.ListenKeyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(HeaderAPIKey, c.signer.APIKey()).
		SetResult(&result).
		Post("/fapi/v1/listenKey")
	if err != nil {
		return "", fmt.Errorf("create listen key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", newAPIError(resp.StatusCode(), resp.Body())
	}
	if result.ListenKey == "" {
		return "", fmt.Errorf("create listen key: empty key in response %s", resp.String())
	}
	return result.ListenKey, nil
}

// KeepAliveListenKey extends the user-data session. The venue expires keys
// after 60 minutes without a keepalive.
func (c *Client) KeepAliveListenKey(ctx context.Context) error {
	if err := c.rl.ListenKey.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(HeaderAPIKey, c.signer.APIKey()).
		Put("/fapi/v1/listenKey")
	if err != nil {
		return fmt.Errorf("keepalive listen key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return newAPIError(resp.StatusCode(), resp.Body())
	}
	return nil
}

// DepthSnapshot fetches a book snapshot. Unsigned.
func (c *Client) DepthSnapshot(ctx context.Context, symbol types.Symbol, limit int) (*types.DepthSnapshot, error) {
	if err := c.rl.Depth.Wait(ctx); err != nil {
		return nil, err
	}

	var snap types.DepthSnapshot
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol.String()).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&snap).
		Get("/fapi/v1/depth")
	if err != nil {
		return nil, fmt.Errorf("depth snapshot: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, newAPIError(resp.StatusCode(), resp.Body())
	}
	return &snap, nil
}
